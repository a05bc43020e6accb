package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles account operations
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		FindForCampaign(ctx context.Context, campaign *model.Campaign) ([]*model.User, error)
		FindIDsByEmail(ctx context.Context, email string) ([]uuid.UUID, error)
	}

	// CampaignRepository handles campaign rows and their aggregate counters.
	// The counter mutations are relative SQL increments, never
	// read-modify-write in application memory.
	CampaignRepository interface {
		Create(ctx context.Context, campaign *model.Campaign) error
		Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
		GetForOperator(ctx context.Context, id, operatorID uuid.UUID) (*model.Campaign, error)
		ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]*model.Campaign, error)
		ListByStatus(ctx context.Context, status string) ([]*model.Campaign, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
		MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
		SetTotalRecipients(ctx context.Context, id uuid.UUID, total int) error
		IncrementSent(ctx context.Context, id uuid.UUID) error
		IncrementFailed(ctx context.Context, id uuid.UUID) error
		ResetDailyWindow(ctx context.Context, id uuid.UUID, today time.Time) (bool, error)
		MarkTested(ctx context.Context, id uuid.UUID, email string, at time.Time) error
	}

	// RecipientRepository handles per-addressee delivery rows.
	RecipientRepository interface {
		BulkInsert(ctx context.Context, recipients []*model.Recipient) (int, error)
		UpsertTest(ctx context.Context, recipient *model.Recipient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error)
		ListPendingIDs(ctx context.Context, campaignID uuid.UUID, limit int) ([]uuid.UUID, error)
		ListPendingByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Recipient, error)
		CountPending(ctx context.Context, campaignID uuid.UUID) (int, error)
		CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error)
		MarkSent(ctx context.Context, id uuid.UUID, messageID *string, at time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
		MarkBouncedByEmail(ctx context.Context, email string, onlySent bool, reason string) (int64, error)
	}

	// SuppressionRepository handles unsubscribe and bounce state.
	SuppressionRepository interface {
		InsertBounce(ctx context.Context, bounce *model.Bounce) error
		UpsertUnsubscribe(ctx context.Context, unsub *model.Unsubscribe) error
		GetUnsubscribedUserIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
		GetBlockedEmails(ctx context.Context) (map[string]struct{}, error)
		GetUnsubscribe(ctx context.Context, userID uuid.UUID) (*model.Unsubscribe, error)
	}

	// TaskRepository is the durable delayed work queue.
	TaskRepository interface {
		Schedule(ctx context.Context, kind string, payload interface{}, runAt time.Time) (*model.ScheduledTask, error)
		ClaimDue(ctx context.Context, limit int) ([]*model.ScheduledTask, error)
		MarkDone(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
	}

	// SchoolRepository handles the province/school hierarchy.
	SchoolRepository interface {
		ListProvinces(ctx context.Context) ([]*model.Province, error)
		ListSchools(ctx context.Context, provinceID *uuid.UUID) ([]*model.School, error)
		Get(ctx context.Context, id uuid.UUID) (*model.School, error)
	}

	// PostRepository handles published content.
	PostRepository interface {
		Create(ctx context.Context, post *model.Post) error
		Get(ctx context.Context, id uuid.UUID) (*model.Post, error)
		ListPublished(ctx context.Context, p model.Pagination) ([]*model.Post, error)
		Publish(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	// OlympiadRepository handles competitions and results.
	OlympiadRepository interface {
		GetOlympiad(ctx context.Context, id uuid.UUID) (*model.Olympiad, error)
		SaveResult(ctx context.Context, result *model.OlympiadResult) error
		ListResults(ctx context.Context, olympiadID uuid.UUID) ([]*model.OlympiadResult, error)
	}
)
