package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a user's website. CurrentVersionID is nil when the live code was
// saved by hand and no longer matches any stored version.
type Project struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	Name             string     `json:"name"`
	CurrentCode      string     `json:"current_code"`
	CurrentVersionID *uuid.UUID `json:"current_version_id,omitempty"`
	IsPublished      bool       `json:"is_published"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PublishedProject is the gallery view of a published project.
type PublishedProject struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerName string    `json:"owner_name"`
	UpdatedAt time.Time `json:"updated_at"`
}
