// Package execution holds background jobs run by the river queue.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// RefundCreditsArgs returns a revision charge that could not be refunded inline.
type RefundCreditsArgs struct {
	UserID    uuid.UUID `json:"user_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	Amount    int       `json:"amount"`
}

func (RefundCreditsArgs) Kind() string { return "refund_credits" }

// InsertOpts makes one job per attempt; river retries it with backoff.
func (RefundCreditsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 20,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// Refunder is the ledger operation the worker needs. It must be idempotent
// per attempt.
type Refunder interface {
	Credit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (int, error)
}

type RefundCreditsWorker struct {
	river.WorkerDefaults[RefundCreditsArgs]
	ledger Refunder
	logger *slog.Logger
}

func NewRefundCreditsWorker(l Refunder, logger *slog.Logger) *RefundCreditsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefundCreditsWorker{ledger: l, logger: logger}
}

func (w *RefundCreditsWorker) Work(ctx context.Context, job *river.Job[RefundCreditsArgs]) error {
	args := job.Args
	if args.Amount <= 0 {
		return river.JobCancel(fmt.Errorf("invalid refund amount %d", args.Amount))
	}
	balance, err := w.ledger.Credit(ctx, args.UserID, args.AttemptID, args.Amount)
	if err != nil {
		return fmt.Errorf("refund attempt %s: %w", args.AttemptID, err)
	}
	w.logger.Info("deferred refund applied", "user_id", args.UserID, "attempt_id", args.AttemptID, "balance", balance)
	return nil
}

// InsertRefundFunc enqueues a refund job. main wires it to the river client
// once the client exists.
type InsertRefundFunc func(ctx context.Context, args RefundCreditsArgs) error

// RefundScheduler hands failed inline refunds to the queue.
type RefundScheduler struct {
	insert InsertRefundFunc
}

func NewRefundScheduler(insert InsertRefundFunc) *RefundScheduler {
	return &RefundScheduler{insert: insert}
}

func (s *RefundScheduler) ScheduleRefund(ctx context.Context, userID, attemptID uuid.UUID, amount int) error {
	if s == nil || s.insert == nil {
		return errors.New("refund queue not configured")
	}
	return s.insert(ctx, RefundCreditsArgs{UserID: userID, AttemptID: attemptID, Amount: amount})
}
