package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type suppressionRepository struct {
	BaseRepository
}

func NewSuppressionRepository(base BaseRepository) repository.SuppressionRepository {
	return &suppressionRepository{base}
}

// InsertBounce appends one provider notification record. The bounce
// log is append-only: there is no update or delete path.
func (r *suppressionRepository) InsertBounce(ctx context.Context, bounce *model.Bounce) error {
	query := `
		INSERT INTO bounces (
			id, email, bounce_type, message_id, recipient_id, notification_data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	bounce.ID = uuid.New()
	bounce.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		bounce.ID, bounce.Email, bounce.BounceType, bounce.MessageID,
		bounce.RecipientID, bounce.NotificationData, bounce.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bounce: %w", err)
	}
	return nil
}

// UpsertUnsubscribe records an opt-out, keeping the earliest row when
// one already exists for the user.
func (r *suppressionRepository) UpsertUnsubscribe(ctx context.Context, unsub *model.Unsubscribe) error {
	query := `
		INSERT INTO unsubscribes (user_id, email, reason, unsubscribed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET reason = COALESCE(unsubscribes.reason, EXCLUDED.reason)
	`
	if unsub.UnsubscribedAt.IsZero() {
		unsub.UnsubscribedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query, unsub.UserID, unsub.Email, unsub.Reason, unsub.UnsubscribedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert unsubscribe: %w", err)
	}
	return nil
}

func (r *suppressionRepository) GetUnsubscribedUserIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM unsubscribes`); err != nil {
		return nil, fmt.Errorf("failed to load unsubscribed users: %w", err)
	}

	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// GetBlockedEmails returns addresses with a hard-bounce or complaint
// record. Soft bounces are transient and do not block.
func (r *suppressionRepository) GetBlockedEmails(ctx context.Context) (map[string]struct{}, error) {
	query := `SELECT DISTINCT email FROM bounces WHERE bounce_type IN ($1, $2)`

	var emails []string
	if err := r.db.SelectContext(ctx, &emails, query, model.BounceTypeHard, model.BounceTypeComplaint); err != nil {
		return nil, fmt.Errorf("failed to load blocked emails: %w", err)
	}

	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		set[email] = struct{}{}
	}
	return set, nil
}

func (r *suppressionRepository) GetUnsubscribe(ctx context.Context, userID uuid.UUID) (*model.Unsubscribe, error) {
	query := `SELECT user_id, email, reason, unsubscribed_at FROM unsubscribes WHERE user_id = $1`

	var unsub model.Unsubscribe
	if err := r.db.GetContext(ctx, &unsub, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get unsubscribe: %w", err)
	}
	return &unsub, nil
}
