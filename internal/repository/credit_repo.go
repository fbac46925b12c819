package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// Create inserts a ledger entry, joining the context transaction if any.
// A second entry of the same type for one attempt yields ErrDuplicate.
func (r *CreditRepo) Create(ctx context.Context, c *models.CreditEntry) error {
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO credit_ledger (id, user_id, attempt_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.UserID, c.AttemptID, c.EntryType, c.Amount, c.BalanceAfter).Scan(&c.CreatedAt)
	return mapErr(err)
}

func (r *CreditRepo) ExistsForAttempt(ctx context.Context, attemptID uuid.UUID, entryType string) (bool, error) {
	var exists bool
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM credit_ledger WHERE attempt_id = $1 AND entry_type = $2)
	`, attemptID, entryType).Scan(&exists)
	return exists, err
}

func (r *CreditRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditEntry, error) {
	rows, err := database.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, user_id, attempt_id, entry_type, amount, balance_after, created_at
		FROM credit_ledger WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditEntry
	for rows.Next() {
		var c models.CreditEntry
		if err := rows.Scan(&c.ID, &c.UserID, &c.AttemptID, &c.EntryType, &c.Amount, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
