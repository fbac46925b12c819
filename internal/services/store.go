package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/models"
)

// UserReader resolves the caller.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProjectStore is implemented by repository.ProjectRepo. Owner-scoped
// methods report repository.ErrNotFound for projects owned by someone else.
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Project, error)
	SetCurrent(ctx context.Context, id uuid.UUID, code string, versionID *uuid.UUID) error
	SetPublished(ctx context.Context, id, ownerID uuid.UUID, published bool) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error)
	ListPublished(ctx context.Context, limit int) ([]*models.PublishedProject, error)
}

// VersionStore is append-only.
type VersionStore interface {
	Create(ctx context.Context, projectID uuid.UUID, code, description string) (*models.Version, error)
	Get(ctx context.Context, projectID, versionID uuid.UUID) (*models.Version, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Version, error)
}

// ConversationLog is the per-project audit trail.
type ConversationLog interface {
	Append(ctx context.Context, projectID uuid.UUID, role, content string) (*models.ConversationEntry, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ConversationEntry, error)
}

// TxRunner runs fn in one transaction; stores called with the ctx passed to
// fn take part in it.
type TxRunner interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RefundScheduler queues a refund that failed inline.
type RefundScheduler interface {
	ScheduleRefund(ctx context.Context, userID, attemptID uuid.UUID, amount int) error
}
