// Package ledger keeps user credit balances and the entries that explain them.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/repository"
)

var (
	// ErrInsufficientCredits is returned when the balance cannot cover a debit.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type Service interface {
	// Debit atomically removes amount from the balance. It never leaves a
	// partial deduction and never drives the balance negative.
	Debit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (balance int, err error)
	// Credit refunds a debit. Repeated calls for one attempt refund once.
	Credit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (balance int, err error)
	Grant(ctx context.Context, userID uuid.UUID, amount int, entryType string) (balance int, err error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditEntry, error)
}

// AccountStore is the slice of the user repository the ledger needs.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	DeductCredits(ctx context.Context, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, id uuid.UUID, amount int) (newBalance int, err error)
}

// EntryStore is the slice of the credit ledger repository the ledger needs.
type EntryStore interface {
	Create(ctx context.Context, c *models.CreditEntry) error
	ExistsForAttempt(ctx context.Context, attemptID uuid.UUID, entryType string) (bool, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditEntry, error)
}

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type service struct {
	accounts AccountStore
	entries  EntryStore
	tx       TxRunner
}

func NewService(accounts AccountStore, entries EntryStore, tx TxRunner) Service {
	return &service{accounts: accounts, entries: entries, tx: tx}
}

var _ Service = (*service)(nil)

func (s *service) Debit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		b, err := s.accounts.DeductCredits(ctx, userID, amount)
		if errors.Is(err, repository.ErrNotFound) {
			if _, gerr := s.accounts.GetByID(ctx, userID); errors.Is(gerr, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return ErrInsufficientCredits
		}
		if err != nil {
			return fmt.Errorf("deduct credits: %w", err)
		}
		balance = b
		return s.entries.Create(ctx, &models.CreditEntry{
			ID:           uuid.New(),
			UserID:       userID,
			AttemptID:    &attemptID,
			EntryType:    models.CreditEntryRevisionCharge,
			Amount:       -amount,
			BalanceAfter: b,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) Credit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		done, err := s.entries.ExistsForAttempt(ctx, attemptID, models.CreditEntryRevisionRefund)
		if err != nil {
			return fmt.Errorf("check refund: %w", err)
		}
		if done {
			u, err := s.accounts.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			balance = u.Credits
			return nil
		}
		b, err := s.accounts.AddCredits(ctx, userID, amount)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		balance = b
		return s.entries.Create(ctx, &models.CreditEntry{
			ID:           uuid.New(),
			UserID:       userID,
			AttemptID:    &attemptID,
			EntryType:    models.CreditEntryRevisionRefund,
			Amount:       amount,
			BalanceAfter: b,
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent refund for the same attempt committed first.
		return s.Balance(ctx, userID)
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) Grant(ctx context.Context, userID uuid.UUID, amount int, entryType string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		b, err := s.accounts.AddCredits(ctx, userID, amount)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		balance = b
		return s.entries.Create(ctx, &models.CreditEntry{
			ID:           uuid.New(),
			UserID:       userID,
			EntryType:    entryType,
			Amount:       amount,
			BalanceAfter: b,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	u, err := s.accounts.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return u.Credits, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.entries.ListByUserID(ctx, userID, limit)
}
