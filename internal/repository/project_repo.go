package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/models"
)

const projectColumns = `id, owner_id, name, current_code, current_version_id, is_published, created_at, updated_at`

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CurrentCode, &p.CurrentVersionID, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *models.Project) error {
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO projects (id, owner_id, name, current_code, current_version_id, is_published)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.OwnerID, p.Name, p.CurrentCode, p.CurrentVersionID, p.IsPublished).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(database.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// GetForOwner returns ErrNotFound both for a missing project and for one
// owned by someone else.
func (r *ProjectRepo) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Project, error) {
	return scanProject(database.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

// SetCurrent replaces the live code and version pointer in one statement.
// A nil versionID marks the code as unversioned.
func (r *ProjectRepo) SetCurrent(ctx context.Context, id uuid.UUID, code string, versionID *uuid.UUID) error {
	tag, err := database.Executor(ctx, r.pool).Exec(ctx, `
		UPDATE projects SET current_code = $2, current_version_id = $3, updated_at = now()
		WHERE id = $1
	`, id, code, versionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepo) SetPublished(ctx context.Context, id, ownerID uuid.UUID, published bool) error {
	tag, err := database.Executor(ctx, r.pool).Exec(ctx, `
		UPDATE projects SET is_published = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID, published)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the project; versions and conversation entries cascade.
func (r *ProjectRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := database.Executor(ctx, r.pool).Exec(ctx,
		`DELETE FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error) {
	rows, err := database.Executor(ctx, r.pool).Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *ProjectRepo) ListPublished(ctx context.Context, limit int) ([]*models.PublishedProject, error) {
	rows, err := database.Executor(ctx, r.pool).Query(ctx, `
		SELECT p.id, p.name, u.name, p.updated_at
		FROM projects p JOIN users u ON u.id = p.owner_id
		WHERE p.is_published AND p.current_code <> ''
		ORDER BY p.updated_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PublishedProject
	for rows.Next() {
		var p models.PublishedProject
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerName, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
