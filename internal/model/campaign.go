package model

import (
	"time"

	"github.com/google/uuid"
)

// Campaign status constants
const (
	CampaignStatusDraft   = "draft"
	CampaignStatusQueued  = "queued"
	CampaignStatusSending = "sending"
	CampaignStatusPaused  = "paused"
	CampaignStatusSent    = "sent"
	CampaignStatusFailed  = "failed"
)

// DefaultDailyLimit is the per-campaign send budget applied when the
// operator does not override it.
const DefaultDailyLimit = 50000

// FromEmailChoices are the sender addresses an operator may pick from.
var FromEmailChoices = []string{
	"baysa@mmo.mn",
	"info@mmo.mn",
	"registration@mmo.mn",
}

// Campaign is one configured, trackable mass-email send job.
//
// Recipient selection is a tagged choice: UseCustomList selects the
// pasted-list mode, otherwise the filter booleans plus the optional
// province/school restriction apply. The two modes are mutually
// exclusive and validated at creation time.
type Campaign struct {
	Base
	Name        string    `json:"name" db:"name"`
	Subject     string    `json:"subject" db:"subject"`
	Message     string    `json:"message" db:"message"`
	HTMLMessage *string   `json:"html_message,omitempty" db:"html_message"`
	FromEmail   string    `json:"from_email" db:"from_email"`
	CreatedBy   uuid.UUID `json:"created_by" db:"created_by"`

	UseCustomList        bool       `json:"use_custom_list" db:"use_custom_list"`
	FilterActiveYear     bool       `json:"filter_active_year" db:"filter_active_year"`
	FilterTeachers       bool       `json:"filter_teachers" db:"filter_teachers"`
	FilterStudents       bool       `json:"filter_students" db:"filter_students"`
	FilterSchoolManagers bool       `json:"filter_school_managers" db:"filter_school_managers"`
	ProvinceID           *uuid.UUID `json:"province_id,omitempty" db:"province_id"`
	SchoolID             *uuid.UUID `json:"school_id,omitempty" db:"school_id"`

	Status          string     `json:"status" db:"status"`
	TotalRecipients int        `json:"total_recipients" db:"total_recipients"`
	SentCount       int        `json:"sent_count" db:"sent_count"`
	FailedCount     int        `json:"failed_count" db:"failed_count"`
	DailyLimit      int        `json:"daily_limit" db:"daily_limit"`
	EmailsSentToday int        `json:"emails_sent_today" db:"emails_sent_today"`
	LastResetDate   time.Time  `json:"last_reset_date" db:"last_reset_date"`
	SentAt          *time.Time `json:"sent_at,omitempty" db:"sent_at"`

	IsTested           bool       `json:"is_tested" db:"is_tested"`
	TestSentAt         *time.Time `json:"test_sent_at,omitempty" db:"test_sent_at"`
	TestRecipientEmail *string    `json:"test_recipient_email,omitempty" db:"test_recipient_email"`
}

// RemainingToday returns the unused part of today's send budget.
func (c *Campaign) RemainingToday() int {
	return c.DailyLimit - c.EmailsSentToday
}

// StatusLabel returns the human-readable status name.
func (c *Campaign) StatusLabel() string {
	switch c.Status {
	case CampaignStatusDraft:
		return "Draft"
	case CampaignStatusQueued:
		return "Queued"
	case CampaignStatusSending:
		return "Sending"
	case CampaignStatusPaused:
		return "Paused"
	case CampaignStatusSent:
		return "Sent"
	case CampaignStatusFailed:
		return "Failed"
	}
	return c.Status
}

// Recipient status constants
const (
	RecipientStatusPending = "pending"
	RecipientStatusSent    = "sent"
	RecipientStatusFailed  = "failed"
	RecipientStatusBounced = "bounced"
)

// Recipient is one addressee row within a campaign's send list. UserID
// is a weak reference: deleting the account nulls it without touching
// the delivery record.
type Recipient struct {
	Base
	CampaignID   uuid.UUID  `json:"campaign_id" db:"campaign_id"`
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	UserID       *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	IsTest       bool       `json:"is_test" db:"is_test"`
	Status       string     `json:"status" db:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	MessageID    *string    `json:"message_id,omitempty" db:"message_id"`
}

// DisplayName returns the name used in the rendered message body.
func (r *Recipient) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return "User"
}

// CreateCampaignRequest represents campaign creation parameters
type CreateCampaignRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Subject     string  `json:"subject" binding:"required,max=200"`
	Message     string  `json:"message" binding:"required"`
	HTMLMessage *string `json:"html_message"`
	FromEmail   string  `json:"from_email" binding:"omitempty,sender_email"`
	DailyLimit  int     `json:"daily_limit"`

	UseCustomList bool   `json:"use_custom_list"`
	EmailList     string `json:"email_list"`

	FilterActiveYear     bool       `json:"filter_active_year"`
	FilterTeachers       bool       `json:"filter_teachers"`
	FilterStudents       bool       `json:"filter_students"`
	FilterSchoolManagers bool       `json:"filter_school_managers"`
	ProvinceID           *uuid.UUID `json:"province_id"`
	SchoolID             *uuid.UUID `json:"school_id"`
}

// CampaignStats is the aggregate view returned by the status endpoint.
type CampaignStats struct {
	Status          string  `json:"status"`
	SentCount       int     `json:"sent_count"`
	FailedCount     int     `json:"failed_count"`
	PendingCount    int     `json:"pending_count"`
	ProgressPercent float64 `json:"progress_percent"`
}
