package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/ledger"
	"github.com/sitecraft/backend/internal/middleware"
	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/repository"
)

// Users resolves the signed-in user.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Credits is the read side of ledger.Service.
type Credits interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditEntry, error)
}

// ProjectLister lists the signed-in user's projects.
type ProjectLister interface {
	ListProjects(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
}

type Handler struct {
	users    Users
	credits  Credits
	projects ProjectLister
	log      *slog.Logger
}

func NewHandler(users Users, credits Credits, projects ProjectLister, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{users: users, credits: credits, projects: projects, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := middleware.UserIDFromCtx(r.Context())
	if id == uuid.Nil {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/user/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		h.log.Error("get user failed", "user_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// GET /api/user/credits
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	balance, err := h.credits.Balance(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		h.log.Error("get credits failed", "user_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": balance})
}

// GET /api/user/credit-ledger?limit=N
func (h *Handler) ListCreditLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := h.credits.History(r.Context(), id, limit)
	if err != nil {
		h.log.Error("list credit ledger failed", "user_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []*models.CreditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GET /api/user/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	list, err := h.projects.ListProjects(r.Context(), id)
	if err != nil {
		h.log.Error("list projects failed", "user_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}
