package services

import (
	"errors"
	"fmt"

	"github.com/sitecraft/backend/internal/generation"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrVersionNotFound     = fmt.Errorf("version %w", ErrNotFound)
	ErrGenerationFailed    = generation.ErrGenerationFailed
)

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}
