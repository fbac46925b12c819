// Package generation talks to the hosted text-generation model and cleans up
// what it returns.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrGenerationFailed matches every failure of the generation provider:
// transport errors, non-2xx replies, error payloads and empty output.
var ErrGenerationFailed = errors.New("generation failed")

// TextGenerator completes a single prompt. Implementations do not retry.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Error carries the provider status and message when one was available.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation failed (status %d): %s", e.Status, e.Message)
	}
	return "generation failed: " + e.Message
}

func (e *Error) Is(target error) bool { return target == ErrGenerationFailed }

func (e *Error) Unwrap() error { return e.Err }
