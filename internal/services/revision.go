package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/generation"
	"github.com/sitecraft/backend/internal/ledger"
	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/observability"
	"github.com/sitecraft/backend/internal/prompts"
	"github.com/sitecraft/backend/internal/repository"
)

// DefaultRevisionCost is the number of credits one revision attempt costs.
const DefaultRevisionCost = 5

// MaxMessageLength bounds a change request, in runes.
const MaxMessageLength = 4000

// VersionDescription is stored on every version a revision creates.
const VersionDescription = "changes made"

// Conversation narration and caller-facing messages.
const (
	noteEnhanced         = "I have enhanced your prompt to: \"%s\""
	noteRevised          = "I have made the changes to your website! You can now preview it"
	noteGenerationFailed = "Unable to generate the code, please try again"
	noteRevisionError    = "Something went wrong while applying your changes, please try again"
	noteNoCredits        = "You don't have enough credits left to make this change"
	noteRolledBack       = "I've rolled back your website to the selected version. You can now preview it"

	MessageRevised    = "Changes made successfully"
	MessageRolledBack = "Version rolled back"
)

// Result is what a workflow reports back to its caller.
type Result struct {
	Message string          `json:"message"`
	Version *models.Version `json:"version,omitempty"`
}

// RevisionEngine runs the revision and rollback workflows. It holds no
// mutable state of its own; everything durable goes through the stores.
type RevisionEngine struct {
	Users        UserReader
	Projects     ProjectStore
	Versions     VersionStore
	Conversation ConversationLog
	Ledger       ledger.Service
	Generator    generation.TextGenerator
	Prompts      *prompts.Templates
	Tx           TxRunner
	// Refunds receives charges that could not be returned inline. Optional.
	Refunds RefundScheduler
	Metrics *observability.Metrics
	Logger  *slog.Logger
	// Cost defaults to DefaultRevisionCost.
	Cost int
}

func (e *RevisionEngine) cost() int {
	if e.Cost > 0 {
		return e.Cost
	}
	return DefaultRevisionCost
}

func (e *RevisionEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func validateMessage(message string) error {
	return validation.Validate(strings.TrimSpace(message),
		validation.Required.Error("please enter a valid prompt"),
		validation.RuneLength(1, MaxMessageLength).Error(fmt.Sprintf("prompt must be at most %d characters", MaxMessageLength)),
	)
}

// MakeRevision charges the user, asks the model for an updated document and
// stores it as a new version. The charge is refunded on every path that does
// not end with a committed version.
func (e *RevisionEngine) MakeRevision(ctx context.Context, userID, projectID uuid.UUID, message string) (*Result, error) {
	cost := e.cost()

	user, err := e.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Credits < cost {
		e.Metrics.ObserveRevision(observability.OutcomeRejected)
		return nil, ErrInsufficientCredits
	}
	if err := validateMessage(message); err != nil {
		e.Metrics.ObserveRevision(observability.OutcomeRejected)
		return nil, invalid(err)
	}
	project, err := e.Projects.GetForOwner(ctx, projectID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		e.Metrics.ObserveRevision(observability.OutcomeRejected)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	attemptID := uuid.New()
	log := e.logger().With("user_id", userID, "project_id", projectID, "attempt_id", attemptID)

	if _, err := e.Conversation.Append(ctx, projectID, models.RoleUser, message); err != nil {
		e.Metrics.ObserveRevision(observability.OutcomeError)
		return nil, fmt.Errorf("record request: %w", err)
	}

	res, err := ledger.Reserve(ctx, e.Ledger, userID, attemptID, cost)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			// Another request spent the balance after the check above.
			e.note(ctx, log, projectID, noteNoCredits)
			e.Metrics.ObserveRevision(observability.OutcomeRejected)
			return nil, ErrInsufficientCredits
		}
		e.note(ctx, log, projectID, noteRevisionError)
		e.Metrics.ObserveRevision(observability.OutcomeError)
		return nil, fmt.Errorf("reserve credits: %w", err)
	}
	defer e.settle(ctx, log, res)

	enhanced, err := e.complete(ctx, observability.StageEnhance, func() (string, error) {
		return e.Prompts.Enhance(message)
	})
	if err != nil {
		return nil, e.abort(ctx, log, projectID, err)
	}
	if _, err := e.Conversation.Append(ctx, projectID, models.RoleAssistant, fmt.Sprintf(noteEnhanced, enhanced)); err != nil {
		return nil, e.abort(ctx, log, projectID, fmt.Errorf("record enhancement: %w", err))
	}

	raw, err := e.complete(ctx, observability.StageGenerate, func() (string, error) {
		return e.Prompts.Generate(project.CurrentCode, enhanced)
	})
	if err != nil {
		return nil, e.abort(ctx, log, projectID, err)
	}
	code := generation.ExtractCode(raw)
	if code == "" {
		return nil, e.abort(ctx, log, projectID, &generation.Error{Message: "no code in generated output"})
	}

	var version *models.Version
	err = e.Tx.ExecTx(ctx, func(ctx context.Context) error {
		v, err := e.Versions.Create(ctx, projectID, code, VersionDescription)
		if err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		if err := e.Projects.SetCurrent(ctx, projectID, v.Code, &v.ID); err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		version = v
		return nil
	})
	if err != nil {
		return nil, e.abort(ctx, log, projectID, err)
	}
	res.Commit()

	if _, err := e.Conversation.Append(ctx, projectID, models.RoleAssistant, noteRevised); err != nil {
		log.Error("record revision success", "version_id", version.ID, "error", err)
	}
	e.Metrics.ObserveRevision(observability.OutcomeSuccess)
	log.Info("revision committed", "version_id", version.ID)
	return &Result{Message: MessageRevised, Version: version}, nil
}

// Rollback repoints the project at a stored version. It is free and never
// creates a version.
func (e *RevisionEngine) Rollback(ctx context.Context, userID, projectID, versionID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if _, err := e.Projects.GetForOwner(ctx, projectID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	version, err := e.Versions.Get(ctx, projectID, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("load version: %w", err)
	}
	if err := e.Projects.SetCurrent(ctx, projectID, version.Code, &version.ID); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if _, err := e.Conversation.Append(ctx, projectID, models.RoleAssistant, noteRolledBack); err != nil {
		e.logger().Error("record rollback", "project_id", projectID, "version_id", versionID, "error", err)
	}
	e.Metrics.ObserveRollback()
	return &Result{Message: MessageRolledBack, Version: version}, nil
}

func (e *RevisionEngine) resolveUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	user, err := e.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// complete renders a prompt and sends it. Blank output counts as a failure.
func (e *RevisionEngine) complete(ctx context.Context, stage string, render func() (string, error)) (string, error) {
	prompt, err := render()
	if err != nil {
		return "", err
	}
	start := time.Now()
	text, err := e.Generator.Complete(ctx, prompt)
	e.Metrics.ObserveGeneration(stage, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", stage, &generation.Error{Message: "empty output"})
	}
	return text, nil
}

// abort records the failure for the user and classifies it. The deferred
// settle returns the credits.
func (e *RevisionEngine) abort(ctx context.Context, log *slog.Logger, projectID uuid.UUID, err error) error {
	if errors.Is(err, ErrGenerationFailed) {
		log.Warn("generation failed", "error", err)
		e.note(ctx, log, projectID, noteGenerationFailed)
		e.Metrics.ObserveRevision(observability.OutcomeGenerationFailed)
		return err
	}
	log.Error("revision failed", "error", err)
	e.note(ctx, log, projectID, noteRevisionError)
	e.Metrics.ObserveRevision(observability.OutcomeError)
	return err
}

func (e *RevisionEngine) note(ctx context.Context, log *slog.Logger, projectID uuid.UUID, content string) {
	if _, err := e.Conversation.Append(context.WithoutCancel(ctx), projectID, models.RoleAssistant, content); err != nil {
		log.Error("record failure note", "error", err)
	}
}

// settle refunds the reservation unless it was committed. The refund runs
// even if the caller has gone away; when it still fails it is queued.
func (e *RevisionEngine) settle(ctx context.Context, log *slog.Logger, res *ledger.Reservation) {
	if res.Committed() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	refunded, err := res.Release(ctx)
	if err == nil {
		if refunded {
			e.Metrics.ObserveRefund("inline")
			log.Info("revision charge refunded", "amount", res.Amount)
		}
		return
	}
	log.Error("inline refund failed", "amount", res.Amount, "error", err)
	if e.Refunds == nil {
		log.Error("refund lost: no refund queue configured", "amount", res.Amount)
		return
	}
	if err := e.Refunds.ScheduleRefund(ctx, res.UserID, res.AttemptID, res.Amount); err != nil {
		log.Error("queue refund failed", "amount", res.Amount, "error", err)
		return
	}
	e.Metrics.ObserveRefund("deferred")
}
