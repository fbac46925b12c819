package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/auth"
	"github.com/sitecraft/backend/internal/dashboard"
	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/validation"
)

type fixedVerifier struct{ id uuid.UUID }

func (f fixedVerifier) ValidateToken(context.Context, string) (uuid.UUID, error) { return f.id, nil }

type stubAuth struct{ registered bool }

func (s *stubAuth) Register(_ context.Context, email, _, name string) (*models.User, error) {
	s.registered = true
	return &models.User{ID: uuid.New(), Email: email, Name: name}, nil
}
func (s *stubAuth) Login(context.Context, string, string) (string, error) { return "tok", nil }
func (s *stubAuth) ValidateToken(context.Context, string) (uuid.UUID, error) {
	return uuid.New(), nil
}

type stubStore struct{}

func (stubStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id}, nil
}
func (stubStore) Balance(context.Context, uuid.UUID) (int, error) { return 9, nil }
func (stubStore) History(context.Context, uuid.UUID, int) ([]*models.CreditEntry, error) {
	return nil, nil
}
func (stubStore) ListProjects(context.Context, uuid.UUID) ([]*models.Project, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, svc auth.Service) http.Handler {
	t.Helper()
	v, err := validation.New()
	if err != nil {
		t.Fatalf("validation.New: %v", err)
	}
	dash := dashboard.NewHandler(stubStore{}, stubStore{}, stubStore{}, nil)
	return New(auth.NewHandler(svc, nil), dash, fixedVerifier{id: uuid.New()}, v)
}

func TestRouter_RegisterValidatesBody(t *testing.T) {
	svc := &stubAuth{}
	h := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@b.io"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.registered {
		t.Error("handler must not run for an invalid body")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@b.io","password":"longenough","name":"Ada"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_UserRoutesRequireAuth(t *testing.T) {
	h := newTestRouter(t, &stubAuth{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/credits", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/user/credits", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"credits":9`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, &stubAuth{})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
