package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Scheduled task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusDone       = "done"
	TaskStatusFailed     = "failed"
)

// Task kinds understood by the worker. Each maps to one pipeline stage.
const (
	TaskKindBuildFilters = "campaign.build_filters"
	TaskKindBuildList    = "campaign.build_list"
	TaskKindDispatch     = "campaign.dispatch"
	TaskKindSendBatch    = "campaign.batch"
	TaskKindCompletion   = "campaign.completion"
	TaskKindTestSend     = "campaign.test_send"
)

// ScheduledTask is one durable unit of delayed work. RunAt is the
// minimum eligibility time; the worker claims due rows with
// FOR UPDATE SKIP LOCKED so tasks are processed at most once at a time.
type ScheduledTask struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Kind         string         `json:"kind" db:"kind"`
	Payload      types.JSONText `json:"payload" db:"payload"`
	Status       string         `json:"status" db:"status"`
	RunAt        time.Time      `json:"run_at" db:"run_at"`
	Attempts     int            `json:"attempts" db:"attempts"`
	ErrorMessage *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// CampaignTaskPayload is the payload shape shared by campaign tasks.
type CampaignTaskPayload struct {
	CampaignID   uuid.UUID   `json:"campaign_id"`
	RecipientIDs []uuid.UUID `json:"recipient_ids,omitempty"`
	RecipientID  *uuid.UUID  `json:"recipient_id,omitempty"`
	EmailList    string      `json:"email_list,omitempty"`
}
