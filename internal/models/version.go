package models

import (
	"time"

	"github.com/google/uuid"
)

// Version is an immutable snapshot of a project's code.
type Version struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
