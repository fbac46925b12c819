package execution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type mockRefunder struct {
	mu    sync.Mutex
	calls []RefundCreditsArgs
	err   error
}

func (m *mockRefunder) Credit(_ context.Context, userID, attemptID uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, RefundCreditsArgs{UserID: userID, AttemptID: attemptID, Amount: amount})
	if m.err != nil {
		return 0, m.err
	}
	return 10, nil
}

func TestRefundCreditsWorker_Work(t *testing.T) {
	ref := &mockRefunder{}
	w := NewRefundCreditsWorker(ref, nil)
	args := RefundCreditsArgs{UserID: uuid.New(), AttemptID: uuid.New(), Amount: 5}

	if err := w.Work(context.Background(), &river.Job[RefundCreditsArgs]{Args: args}); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(ref.calls) != 1 || ref.calls[0] != args {
		t.Errorf("refund calls: got %+v, want [%+v]", ref.calls, args)
	}
}

func TestRefundCreditsWorker_ErrorIsRetried(t *testing.T) {
	ref := &mockRefunder{err: errors.New("connection reset")}
	w := NewRefundCreditsWorker(ref, nil)

	err := w.Work(context.Background(), &river.Job[RefundCreditsArgs]{Args: RefundCreditsArgs{UserID: uuid.New(), AttemptID: uuid.New(), Amount: 5}})
	if err == nil {
		t.Fatal("expected error so river retries the job")
	}
}

func TestRefundCreditsWorker_InvalidAmountCancels(t *testing.T) {
	ref := &mockRefunder{}
	w := NewRefundCreditsWorker(ref, nil)

	err := w.Work(context.Background(), &river.Job[RefundCreditsArgs]{Args: RefundCreditsArgs{UserID: uuid.New(), AttemptID: uuid.New()}})
	if err == nil {
		t.Fatal("expected cancel error")
	}
	if len(ref.calls) != 0 {
		t.Errorf("ledger should not be called, got %d calls", len(ref.calls))
	}
}

func TestRefundCreditsArgs_UniqueByArgs(t *testing.T) {
	opts := RefundCreditsArgs{}.InsertOpts()
	if !opts.UniqueOpts.ByArgs {
		t.Error("refund jobs must be unique by args")
	}
	if (RefundCreditsArgs{}).Kind() != "refund_credits" {
		t.Errorf("kind: got %q", RefundCreditsArgs{}.Kind())
	}
}

func TestRefundScheduler(t *testing.T) {
	var got RefundCreditsArgs
	s := NewRefundScheduler(func(_ context.Context, args RefundCreditsArgs) error {
		got = args
		return nil
	})
	user, attempt := uuid.New(), uuid.New()
	if err := s.ScheduleRefund(context.Background(), user, attempt, 5); err != nil {
		t.Fatalf("ScheduleRefund: %v", err)
	}
	if got.UserID != user || got.AttemptID != attempt || got.Amount != 5 {
		t.Errorf("scheduled args: got %+v", got)
	}

	var unset *RefundScheduler
	if err := unset.ScheduleRefund(context.Background(), user, attempt, 5); err == nil {
		t.Error("nil scheduler should report an error")
	}
}
