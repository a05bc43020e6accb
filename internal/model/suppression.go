package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Bounce classification constants
const (
	BounceTypeHard      = "hard"
	BounceTypeSoft      = "soft"
	BounceTypeComplaint = "complaint"
)

// Bounce is one append-only delivery-provider notification record.
// Rows are never mutated or deleted; hard and complaint entries feed
// the suppression decision for future sends.
type Bounce struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	Email            string         `json:"email" db:"email"`
	BounceType       string         `json:"bounce_type" db:"bounce_type"`
	MessageID        *string        `json:"message_id,omitempty" db:"message_id"`
	RecipientID      *uuid.UUID     `json:"recipient_id,omitempty" db:"recipient_id"`
	NotificationData types.JSONText `json:"notification_data,omitempty" db:"notification_data"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Blocks reports whether this bounce classification suppresses future
// sends to the address. Soft bounces do not.
func (b *Bounce) Blocks() bool {
	return b.BounceType == BounceTypeHard || b.BounceType == BounceTypeComplaint
}

// Unsubscribe marks an account as opted out of campaign mail. One row
// per user, permanent until an operator removes it.
type Unsubscribe struct {
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Email          string    `json:"email" db:"email"`
	Reason         *string   `json:"reason,omitempty" db:"reason"`
	UnsubscribedAt time.Time `json:"unsubscribed_at" db:"unsubscribed_at"`
}
