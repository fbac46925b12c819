package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit ledger entry_type values.
const (
	CreditEntrySignupBonus    = "signup_bonus"
	CreditEntryGrant          = "grant"
	CreditEntryRevisionCharge = "revision_charge"
	CreditEntryRevisionRefund = "revision_refund"
)

// CreditEntry records one balance movement. Charges carry a negative Amount.
// AttemptID ties a charge to its refund; each (attempt, type) pair is unique.
type CreditEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	AttemptID    *uuid.UUID `json:"attempt_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter int        `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
