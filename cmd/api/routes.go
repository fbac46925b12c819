package main

import (
	"log/slog"
	"net/http"

	"github.com/sitecraft/backend/internal/handlers"
	"github.com/sitecraft/backend/internal/middleware"
	"github.com/sitecraft/backend/internal/validation"
)

// RegisterProjectRoutes adds the /api/project endpoints to the given mux.
// Middleware chain: Auth -> (ValidateBody where a body is expected) -> handler.
// The published views are public.
func RegisterProjectRoutes(
	mux *http.ServeMux,
	engine handlers.Reviser,
	projects handlers.Projects,
	verifier middleware.TokenVerifier,
	validator middleware.BodyValidator,
	logger *slog.Logger,
) {
	ph := &handlers.ProjectHandler{Engine: engine, Projects: projects, Logger: logger}

	auth := middleware.Auth(verifier)
	body := func(schema string, h http.HandlerFunc) http.Handler {
		return auth(middleware.ValidateBody(validator, schema)(h))
	}

	// POST /api/project/revision/{projectId}: Auth -> Schema -> MakeRevision (charged)
	mux.Handle("POST /api/project/revision/{projectId}", body(validation.RevisionRequest, ph.MakeRevision))

	// POST /api/project/rollback/{projectId}/{versionId}: Auth -> Rollback (free)
	mux.Handle("POST /api/project/rollback/{projectId}/{versionId}", auth(http.HandlerFunc(ph.Rollback)))

	mux.Handle("GET /api/project/preview/{projectId}", auth(http.HandlerFunc(ph.Preview)))
	mux.Handle("GET /api/project/conversation/{projectId}", auth(http.HandlerFunc(ph.Conversation)))
	mux.Handle("PUT /api/project/save/{projectId}", body(validation.SaveCodeRequest, ph.SaveCode))
	mux.Handle("PATCH /api/project/publish/{projectId}", body(validation.PublishRequest, ph.SetPublished))
	mux.Handle("DELETE /api/project/{projectId}", auth(http.HandlerFunc(ph.Delete)))

	mux.HandleFunc("GET /api/project/published", ph.ListPublished)
	mux.HandleFunc("GET /api/project/published/{projectId}", ph.GetPublished)
}
