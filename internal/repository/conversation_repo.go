package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/models"
)

// ConversationRepo is the per-project audit trail. Entries are insert-only
// and read back in insertion order.
type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Append(ctx context.Context, projectID uuid.UUID, role, content string) (*models.ConversationEntry, error) {
	e := &models.ConversationEntry{ID: uuid.New(), ProjectID: projectID, Role: role, Content: content}
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO conversation_entries (id, project_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, e.ID, e.ProjectID, e.Role, e.Content).Scan(&e.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return e, nil
}

func (r *ConversationRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ConversationEntry, error) {
	rows, err := database.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, project_id, role, content, created_at
		FROM conversation_entries WHERE project_id = $1 ORDER BY seq
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ConversationEntry
	for rows.Next() {
		var e models.ConversationEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Role, &e.Content, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
