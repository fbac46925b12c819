package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/models"
)

const userColumns = `id, email, name, password_hash, credits, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, credits)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Credits).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := database.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := database.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// DeductCredits subtracts amount only when the balance covers it. It returns
// ErrNotFound when no row qualified; callers tell a missing user apart from a
// short balance with GetByID.
func (r *UserRepo) DeductCredits(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var balance int
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		UPDATE users SET credits = credits - $1, updated_at = now()
		WHERE id = $2 AND credits >= $1
		RETURNING credits
	`, amount, id).Scan(&balance)
	if err != nil {
		return 0, mapErr(err)
	}
	return balance, nil
}

func (r *UserRepo) AddCredits(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var balance int
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		UPDATE users SET credits = credits + $1, updated_at = now()
		WHERE id = $2
		RETURNING credits
	`, amount, id).Scan(&balance)
	if err != nil {
		return 0, mapErr(err)
	}
	return balance, nil
}
