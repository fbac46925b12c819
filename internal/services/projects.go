package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/repository"
)

// MaxCodeBytes bounds a hand-saved or imported document.
const MaxCodeBytes = 2 << 20

const (
	MessageSaved   = "Project saved successfully"
	MessageDeleted = "Project deleted successfully"

	initialVersionDescription = "initial version"
	publishedPageSize         = 100
)

// Preview is an owner's view of a project with its full version history.
type Preview struct {
	*models.Project
	Versions []*models.Version `json:"versions"`
}

// ProjectService covers the owner-scoped reads and writes around the
// revision workflow, plus the public published view.
type ProjectService struct {
	Projects     ProjectStore
	Versions     VersionStore
	Conversation ConversationLog
	Tx           TxRunner
	Logger       *slog.Logger
}

func (s *ProjectService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *ProjectService) owned(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	p, err := s.Projects.GetForOwner(ctx, projectID, userID)
	if err != nil {
		return nil, notFound(err, "load project")
	}
	return p, nil
}

func (s *ProjectService) GetPreview(ctx context.Context, userID, projectID uuid.UUID) (*Preview, error) {
	p, err := s.owned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	versions, err := s.Versions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	if versions == nil {
		versions = []*models.Version{}
	}
	return &Preview{Project: p, Versions: versions}, nil
}

// GetPublished returns the live code of a published project. It is the only
// read without an ownership check.
func (s *ProjectService) GetPublished(ctx context.Context, projectID uuid.UUID) (string, error) {
	p, err := s.Projects.GetByID(ctx, projectID)
	if err != nil {
		return "", notFound(err, "load project")
	}
	if !p.IsPublished || p.CurrentCode == "" {
		return "", ErrNotFound
	}
	return p.CurrentCode, nil
}

func (s *ProjectService) ListPublished(ctx context.Context) ([]*models.PublishedProject, error) {
	list, err := s.Projects.ListPublished(ctx, publishedPageSize)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	if list == nil {
		list = []*models.PublishedProject{}
	}
	return list, nil
}

func (s *ProjectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	list, err := s.Projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if list == nil {
		list = []*models.Project{}
	}
	return list, nil
}

// History returns the project's audit trail in insertion order.
func (s *ProjectService) History(ctx context.Context, userID, projectID uuid.UUID) ([]*models.ConversationEntry, error) {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	entries, err := s.Conversation.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	if entries == nil {
		entries = []*models.ConversationEntry{}
	}
	return entries, nil
}

// SaveCode overwrites the live code by hand. The project no longer tracks a
// version afterwards.
func (s *ProjectService) SaveCode(ctx context.Context, userID, projectID uuid.UUID, code string) (*Result, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := validation.Validate(strings.TrimSpace(code), validation.Required.Error("code is required")); err != nil {
		return nil, invalid(err)
	}
	if err := validation.Validate(code, validation.Length(0, MaxCodeBytes).Error("code is too large")); err != nil {
		return nil, invalid(err)
	}
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.Projects.SetCurrent(ctx, projectID, code, nil); err != nil {
		return nil, notFound(err, "save code")
	}
	return &Result{Message: MessageSaved}, nil
}

func (s *ProjectService) SetPublished(ctx context.Context, userID, projectID uuid.UUID, published bool) error {
	if userID == uuid.Nil {
		return ErrUnauthorized
	}
	if err := s.Projects.SetPublished(ctx, projectID, userID, published); err != nil {
		return notFound(err, "set published")
	}
	return nil
}

func (s *ProjectService) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := s.Projects.Delete(ctx, projectID, userID); err != nil {
		return nil, notFound(err, "delete project")
	}
	s.logger().Info("project deleted", "project_id", projectID, "user_id", userID)
	return &Result{Message: MessageDeleted}, nil
}

func requiredID(value interface{}) error {
	if id, _ := value.(uuid.UUID); id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
}

// CreateProjectInput describes a project created outside the revision flow,
// for example an imported document.
type CreateProjectInput struct {
	OwnerID uuid.UUID
	Name    string
	Code    string
}

func (in CreateProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OwnerID, validation.By(requiredID)),
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 120)),
		validation.Field(&in.Code, validation.Length(0, MaxCodeBytes)),
	)
}

// CreateProject stores a new project. Non-empty code also becomes the first
// version.
func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p := &models.Project{ID: uuid.New(), OwnerID: in.OwnerID, Name: in.Name}
	err := s.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.Projects.Create(ctx, p); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		if strings.TrimSpace(in.Code) == "" {
			return nil
		}
		v, err := s.Versions.Create(ctx, p.ID, in.Code, initialVersionDescription)
		if err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		if err := s.Projects.SetCurrent(ctx, p.ID, v.Code, &v.ID); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		p.CurrentCode, p.CurrentVersionID = v.Code, &v.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
