package main

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/ledger"
	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/repository"
	"github.com/sitecraft/backend/internal/services"
)

// adminStore is everything the commands touch.
type adminStore interface {
	Migrate(ctx context.Context) error
	GrantCredits(ctx context.Context, userID uuid.UUID, amount int) (int, error)
	Credits(ctx context.Context, userID uuid.UUID, limit int) (int, []*models.CreditEntry, error)
	ImportProject(ctx context.Context, in services.CreateProjectInput) (*models.Project, error)
}

type openFunc func(ctx context.Context) (adminStore, func(), error)

type pgStore struct {
	migrate  func(ctx context.Context) error
	ledger   ledger.Service
	projects *services.ProjectService
}

func openPostgres(ctx context.Context) (adminStore, func(), error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	pool, err := database.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	txm := database.NewTxManager(pool)
	s := &pgStore{
		migrate: func(ctx context.Context) error { return database.Migrate(ctx, pool) },
		ledger:  ledger.NewService(repository.NewUserRepo(pool), repository.NewCreditRepo(pool), txm),
		projects: &services.ProjectService{
			Projects:     repository.NewProjectRepo(pool),
			Versions:     repository.NewVersionRepo(pool),
			Conversation: repository.NewConversationRepo(pool),
			Tx:           txm,
		},
	}
	return s, pool.Close, nil
}

func (s *pgStore) Migrate(ctx context.Context) error { return s.migrate(ctx) }

func (s *pgStore) GrantCredits(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	return s.ledger.Grant(ctx, userID, amount, models.CreditEntryGrant)
}

func (s *pgStore) Credits(ctx context.Context, userID uuid.UUID, limit int) (int, []*models.CreditEntry, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	entries, err := s.ledger.History(ctx, userID, limit)
	if err != nil {
		return 0, nil, err
	}
	return balance, entries, nil
}

func (s *pgStore) ImportProject(ctx context.Context, in services.CreateProjectInput) (*models.Project, error) {
	return s.projects.CreateProject(ctx, in)
}
