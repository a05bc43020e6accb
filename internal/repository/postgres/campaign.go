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

type campaignRepository struct {
	BaseRepository
}

func NewCampaignRepository(base BaseRepository) repository.CampaignRepository {
	return &campaignRepository{base}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, name, subject, message, html_message, from_email, created_by,
			use_custom_list, filter_active_year, filter_teachers, filter_students,
			filter_school_managers, province_id, school_id,
			status, daily_limit, last_reset_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)
	`
	campaign.ID = uuid.New()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = campaign.CreatedAt
	campaign.Status = model.CampaignStatusDraft
	campaign.LastResetDate = truncateToDate(time.Now())
	if campaign.DailyLimit <= 0 {
		campaign.DailyLimit = model.DefaultDailyLimit
	}

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID, campaign.Name, campaign.Subject, campaign.Message,
		campaign.HTMLMessage, campaign.FromEmail, campaign.CreatedBy,
		campaign.UseCustomList, campaign.FilterActiveYear, campaign.FilterTeachers,
		campaign.FilterStudents, campaign.FilterSchoolManagers,
		campaign.ProvinceID, campaign.SchoolID,
		campaign.Status, campaign.DailyLimit, campaign.LastResetDate,
		campaign.CreatedAt, campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

const campaignColumns = `
	id, name, subject, message, html_message, from_email, created_by,
	use_custom_list, filter_active_year, filter_teachers, filter_students,
	filter_school_managers, province_id, school_id,
	status, total_recipients, sent_count, failed_count,
	daily_limit, emails_sent_today, last_reset_date, sent_at,
	is_tested, test_sent_at, test_recipient_email,
	created_at, updated_at, deleted_at
`

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND deleted_at IS NULL`

	var campaign model.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("campaign %s not found", id)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) GetForOperator(ctx context.Context, id, operatorID uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND created_by = $2 AND deleted_at IS NULL`

	var campaign model.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id, operatorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("campaign %s not found", id)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE created_by = $1 AND deleted_at IS NULL ORDER BY created_at DESC`

	var campaigns []*model.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, operatorID); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ListByStatus(ctx context.Context, status string) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = $1 AND deleted_at IS NULL ORDER BY created_at ASC`

	var campaigns []*model.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, status); err != nil {
		return nil, fmt.Errorf("failed to list campaigns by status: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return nil
}

func (r *campaignRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `UPDATE campaigns SET status = $1, sent_at = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, model.CampaignStatusSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark campaign sent: %w", err)
	}
	return nil
}

func (r *campaignRepository) SetTotalRecipients(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE campaigns SET total_recipients = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, total, id)
	if err != nil {
		return fmt.Errorf("failed to set total recipients: %w", err)
	}
	return nil
}

// IncrementSent bumps both the lifetime and the daily counter in one
// relative update so concurrent batch workers never lose increments.
func (r *campaignRepository) IncrementSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE campaigns
		SET sent_count = sent_count + 1,
			emails_sent_today = emails_sent_today + 1,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment sent count: %w", err)
	}
	return nil
}

func (r *campaignRepository) IncrementFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE campaigns SET failed_count = failed_count + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment failed count: %w", err)
	}
	return nil
}

// ResetDailyWindow zeroes the daily counter when the stored reset date
// is stale. The guard in the WHERE clause makes the day-boundary reset
// a single atomic operation: of two concurrent callers at the boundary
// only one performs the reset, the other sees rows=0.
func (r *campaignRepository) ResetDailyWindow(ctx context.Context, id uuid.UUID, today time.Time) (bool, error) {
	query := `
		UPDATE campaigns
		SET emails_sent_today = 0, last_reset_date = $2, updated_at = NOW()
		WHERE id = $1 AND last_reset_date < $2
	`
	res, err := r.db.ExecContext(ctx, query, id, truncateToDate(today))
	if err != nil {
		return false, fmt.Errorf("failed to reset daily window: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *campaignRepository) MarkTested(ctx context.Context, id uuid.UUID, email string, at time.Time) error {
	query := `
		UPDATE campaigns
		SET is_tested = TRUE, test_recipient_email = $2, test_sent_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, email, at)
	if err != nil {
		return fmt.Errorf("failed to mark campaign tested: %w", err)
	}
	return nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
