package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type recipientRepository struct {
	BaseRepository
}

func NewRecipientRepository(base BaseRepository) repository.RecipientRepository {
	return &recipientRepository{base}
}

const recipientColumns = `
	id, campaign_id, email, name, user_id, is_test, status,
	sent_at, error_message, message_id, created_at, updated_at, deleted_at
`

// BulkInsert inserts recipients, silently skipping rows that collide
// with the uniqueness constraints: one row per (campaign, user) for
// linked recipients, one per (campaign, email) for address-only rows.
// Re-running the builder therefore never duplicates recipients.
// Returns the number of rows actually inserted.
func (r *recipientRepository) BulkInsert(ctx context.Context, recipients []*model.Recipient) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO recipients (
				id, campaign_id, email, name, user_id, is_test, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT DO NOTHING
		`
		now := time.Now()
		for _, recipient := range recipients {
			if recipient.ID == uuid.Nil {
				recipient.ID = uuid.New()
			}
			if recipient.Status == "" {
				recipient.Status = model.RecipientStatusPending
			}
			res, err := tx.ExecContext(ctx, query,
				recipient.ID, recipient.CampaignID, recipient.Email, recipient.Name,
				recipient.UserID, recipient.IsTest, recipient.Status, now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert recipient %s: %w", recipient.Email, err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(rows)
		}
		return nil
	})
	return inserted, err
}

// UpsertTest creates or refreshes the preview-send row for an address.
func (r *recipientRepository) UpsertTest(ctx context.Context, recipient *model.Recipient) error {
	query := `
		INSERT INTO recipients (
			id, campaign_id, email, name, user_id, is_test, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW(), NOW())
		ON CONFLICT (campaign_id, email) WHERE is_test
		DO UPDATE SET name = EXCLUDED.name, user_id = EXCLUDED.user_id,
			status = EXCLUDED.status, error_message = NULL, updated_at = NOW()
		RETURNING id
	`
	if recipient.ID == uuid.Nil {
		recipient.ID = uuid.New()
	}
	recipient.IsTest = true
	recipient.Status = model.RecipientStatusPending

	if err := r.db.QueryRowxContext(ctx, query,
		recipient.ID, recipient.CampaignID, recipient.Email, recipient.Name,
		recipient.UserID, recipient.Status,
	).Scan(&recipient.ID); err != nil {
		return fmt.Errorf("failed to upsert test recipient: %w", err)
	}
	return nil
}

func (r *recipientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`

	var recipient model.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recipient %s not found", id)
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &recipient, nil
}

// ListPendingIDs returns pending non-test recipient ids in creation
// order, so repeated dispatch invocations walk the list stably.
func (r *recipientRepository) ListPendingIDs(ctx context.Context, campaignID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM recipients
		WHERE campaign_id = $1 AND status = $2 AND NOT is_test
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, campaignID, model.RecipientStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending recipients: %w", err)
	}
	return ids, nil
}

func (r *recipientRepository) ListPendingByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+recipientColumns+` FROM recipients WHERE id IN (?) AND status = ?`,
		ids, model.RecipientStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var recipients []*model.Recipient
	if err := r.db.SelectContext(ctx, &recipients, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	return recipients, nil
}

func (r *recipientRepository) CountPending(ctx context.Context, campaignID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM recipients WHERE campaign_id = $1 AND status = $2 AND NOT is_test`

	var count int
	if err := r.db.GetContext(ctx, &count, query, campaignID, model.RecipientStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending recipients: %w", err)
	}
	return count, nil
}

func (r *recipientRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM recipients WHERE campaign_id = $1 AND NOT is_test`

	var count int
	if err := r.db.GetContext(ctx, &count, query, campaignID); err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return count, nil
}

func (r *recipientRepository) MarkSent(ctx context.Context, id uuid.UUID, messageID *string, at time.Time) error {
	query := `
		UPDATE recipients
		SET status = $1, sent_at = $2, message_id = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, model.RecipientStatusSent, at, messageID, id)
	if err != nil {
		return fmt.Errorf("failed to mark recipient sent: %w", err)
	}
	return nil
}

func (r *recipientRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE recipients
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.RecipientStatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark recipient failed: %w", err)
	}
	return nil
}

// MarkBouncedByEmail transitions recipient rows for an address to
// bounced. With onlySent set, only rows already delivered move (hard
// bounces); otherwise every row for the address moves (complaints).
func (r *recipientRepository) MarkBouncedByEmail(ctx context.Context, email string, onlySent bool, reason string) (int64, error) {
	query := `
		UPDATE recipients
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE email = $3
	`
	args := []interface{}{model.RecipientStatusBounced, reason, email}
	if onlySent {
		query += ` AND status = $4`
		args = append(args, model.RecipientStatusSent)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark recipients bounced: %w", err)
	}
	return res.RowsAffected()
}
