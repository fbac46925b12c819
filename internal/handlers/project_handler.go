package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/middleware"
	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/services"
)

// Reviser runs the charged revision workflow and free rollbacks.
type Reviser interface {
	MakeRevision(ctx context.Context, userID, projectID uuid.UUID, message string) (*services.Result, error)
	Rollback(ctx context.Context, userID, projectID, versionID uuid.UUID) (*services.Result, error)
}

// Projects is the subset of services.ProjectService used by the handler.
type Projects interface {
	GetPreview(ctx context.Context, userID, projectID uuid.UUID) (*services.Preview, error)
	GetPublished(ctx context.Context, projectID uuid.UUID) (string, error)
	ListPublished(ctx context.Context) ([]*models.PublishedProject, error)
	History(ctx context.Context, userID, projectID uuid.UUID) ([]*models.ConversationEntry, error)
	SaveCode(ctx context.Context, userID, projectID uuid.UUID, code string) (*services.Result, error)
	SetPublished(ctx context.Context, userID, projectID uuid.UUID, published bool) error
	DeleteProject(ctx context.Context, userID, projectID uuid.UUID) (*services.Result, error)
}

// ProjectHandler serves /api/project endpoints.
type ProjectHandler struct {
	Engine   Reviser
	Projects Projects
	Logger   *slog.Logger
}

// --- POST /api/project/revision/{projectId} ---

type revisionRequest struct {
	Message string `json:"message"`
}

// MakeRevision handles POST /api/project/revision/{projectId}.
// Auth and schema checks run in middleware; the engine owns credits.
func (h *ProjectHandler) MakeRevision(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	var req revisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := h.Engine.MakeRevision(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID, req.Message)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- POST /api/project/rollback/{projectId}/{versionId} ---

func (h *ProjectHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	versionID, ok := pathID(r, "versionId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid version id")
		return
	}
	res, err := h.Engine.Rollback(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID, versionID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- GET /api/project/preview/{projectId} ---

func (h *ProjectHandler) Preview(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	p, err := h.Projects.GetPreview(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"project": p})
}

// --- GET /api/project/conversation/{projectId} ---

func (h *ProjectHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	entries, err := h.Projects.History(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversation": entries})
}

// --- PUT /api/project/save/{projectId} ---

type saveCodeRequest struct {
	Code string `json:"code"`
}

func (h *ProjectHandler) SaveCode(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	var req saveCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := h.Projects.SaveCode(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID, req.Code)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- PATCH /api/project/publish/{projectId} ---

type publishRequest struct {
	IsPublished bool `json:"is_published"`
}

func (h *ProjectHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.Projects.SetPublished(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID, req.IsPublished); err != nil {
		h.handleError(w, r, err)
		return
	}
	msg := "Project unpublished"
	if req.IsPublished {
		msg = "Project published"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": msg, "is_published": req.IsPublished})
}

// --- DELETE /api/project/{projectId} ---

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	res, err := h.Projects.DeleteProject(r.Context(), middleware.UserIDFromCtx(r.Context()), projectID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- GET /api/project/published (public) ---

func (h *ProjectHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	list, err := h.Projects.ListPublished(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": list})
}

// --- GET /api/project/published/{projectId} (public) ---

func (h *ProjectHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	code, err := h.Projects.GetPublished(r.Context(), projectID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// --- helpers ---

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInsufficientCredits):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *ProjectHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, status, "internal error")
	case http.StatusBadGateway:
		h.logger().Warn("generation failed", "path", r.URL.Path, "error", err)
		writeMessage(w, status, "Unable to generate the code, please try again")
	case http.StatusForbidden:
		writeMessage(w, status, "Insufficient credits")
	default:
		writeMessage(w, status, err.Error())
	}
}

func (h *ProjectHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
