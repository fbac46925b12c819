package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Reservation is a debit that is refunded unless it is committed.
// Release is safe to call from a deferred function on every exit path.
type Reservation struct {
	ledger    Service
	UserID    uuid.UUID
	AttemptID uuid.UUID
	Amount    int

	mu        sync.Mutex
	committed bool
	released  bool
}

// Reserve debits amount and returns the reservation holding it.
func Reserve(ctx context.Context, l Service, userID, attemptID uuid.UUID, amount int) (*Reservation, error) {
	if _, err := l.Debit(ctx, userID, attemptID, amount); err != nil {
		return nil, err
	}
	return &Reservation{ledger: l, UserID: userID, AttemptID: attemptID, Amount: amount}, nil
}

// Commit keeps the charge. It reports false if the credits were already returned.
func (r *Reservation) Commit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	r.committed = true
	return true
}

func (r *Reservation) Committed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

// Release refunds the reservation if it is neither committed nor already
// released. refunded is false when there was nothing to do.
func (r *Reservation) Release(ctx context.Context) (refunded bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed || r.released {
		return false, nil
	}
	if _, err := r.ledger.Credit(ctx, r.UserID, r.AttemptID, r.Amount); err != nil {
		return false, err
	}
	r.released = true
	return true, nil
}
