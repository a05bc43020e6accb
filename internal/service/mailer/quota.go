package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mmo-mn/olympiad-api/internal/model"
)

// CheckDailyLimit returns the unused part of the campaign's daily send
// budget, rolling the window over first when the stored reset date is
// stale. The rollover is a single guarded UPDATE at the storage layer,
// so concurrent callers at a day boundary cannot both zero the counter.
// The campaign is reloaded in place after a rollover.
func (s *Service) CheckDailyLimit(ctx context.Context, campaign *model.Campaign) (int, error) {
	if dateOf(campaign.LastResetDate).Before(dateOf(time.Now())) {
		reset, err := s.campaigns.ResetDailyWindow(ctx, campaign.ID, time.Now())
		if err != nil {
			return 0, fmt.Errorf("failed to reset daily window: %w", err)
		}

		fresh, err := s.campaigns.Get(ctx, campaign.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to reload campaign: %w", err)
		}
		*campaign = *fresh

		if reset {
			s.logger.Info("Daily send window reset",
				"campaign_id", campaign.ID.String(),
				"daily_limit", campaign.DailyLimit)
		}
	}

	return campaign.DailyLimit - campaign.EmailsSentToday, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
