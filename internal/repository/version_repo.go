package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/models"
)

// VersionRepo is append-only: versions are never updated in place.
type VersionRepo struct {
	pool *pgxpool.Pool
}

func NewVersionRepo(pool *pgxpool.Pool) *VersionRepo {
	return &VersionRepo{pool: pool}
}

func (r *VersionRepo) Create(ctx context.Context, projectID uuid.UUID, code, description string) (*models.Version, error) {
	v := &models.Version{ID: uuid.New(), ProjectID: projectID, Code: code, Description: description}
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO versions (id, project_id, code, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, v.ID, v.ProjectID, v.Code, v.Description).Scan(&v.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

// Get returns ErrNotFound when the version does not belong to projectID.
func (r *VersionRepo) Get(ctx context.Context, projectID, versionID uuid.UUID) (*models.Version, error) {
	var v models.Version
	err := database.Executor(ctx, r.pool).QueryRow(ctx, `
		SELECT id, project_id, code, description, created_at
		FROM versions WHERE id = $1 AND project_id = $2
	`, versionID, projectID).Scan(&v.ID, &v.ProjectID, &v.Code, &v.Description, &v.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (r *VersionRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Version, error) {
	rows, err := database.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, project_id, code, description, created_at
		FROM versions WHERE project_id = $1 ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Version
	for rows.Next() {
		var v models.Version
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.Code, &v.Description, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &v)
	}
	return list, rows.Err()
}
