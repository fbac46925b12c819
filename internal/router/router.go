package router

import (
	"net/http"

	"github.com/sitecraft/backend/internal/auth"
	"github.com/sitecraft/backend/internal/dashboard"
	"github.com/sitecraft/backend/internal/middleware"
	"github.com/sitecraft/backend/internal/validation"
)

// New returns an http.Handler that serves the account API under /api.
// Project routes are registered separately by cmd/api.
func New(authHandler *auth.Handler, dashHandler *dashboard.Handler, verifier middleware.TokenVerifier, validator middleware.BodyValidator) http.Handler {
	mux := http.NewServeMux()
	base := "/api"

	mux.Handle("POST "+base+"/auth/register",
		middleware.ValidateBody(validator, validation.RegisterRequest)(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST "+base+"/auth/login",
		middleware.ValidateBody(validator, validation.LoginRequest)(http.HandlerFunc(authHandler.Login)))

	authed := middleware.Auth(verifier)
	mux.Handle("GET "+base+"/user/me", authed(http.HandlerFunc(dashHandler.GetMe)))
	mux.Handle("GET "+base+"/user/credits", authed(http.HandlerFunc(dashHandler.GetCredits)))
	mux.Handle("GET "+base+"/user/credit-ledger", authed(http.HandlerFunc(dashHandler.ListCreditLedger)))
	mux.Handle("GET "+base+"/user/projects", authed(http.HandlerFunc(dashHandler.ListProjects)))

	return mux
}
