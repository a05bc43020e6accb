package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
)

// DispatchCampaign drains the campaign's pending queue in rate-limited
// slices. Up to min(pending, remaining quota) recipients are selected
// in creation order, sliced into fixed-size batches, and scheduled with
// a monotonically increasing delay so outbound volume spreads instead
// of bursting. One completion check is scheduled after the last slice.
func (s *Service) DispatchCampaign(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	if campaign.Status == model.CampaignStatusSent || campaign.Status == model.CampaignStatusSending {
		s.logger.Info("Campaign already in progress",
			"campaign_id", campaignID.String(),
			"status", campaign.Status)
		return nil
	}

	if err := s.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusSending); err != nil {
		return err
	}

	if err := s.dispatch(ctx, campaign); err != nil {
		s.failCampaign(ctx, campaignID, err)
		return fmt.Errorf("failed to dispatch campaign %s: %w", campaignID, err)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, campaign *model.Campaign) error {
	remaining, err := s.CheckDailyLimit(ctx, campaign)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		s.logger.Info("Daily limit reached, pausing campaign", "campaign_id", campaign.ID.String())
		s.metrics.CampaignsPaused.Inc()
		return s.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusPaused)
	}

	ids, err := s.recipients.ListPendingIDs(ctx, campaign.ID, remaining)
	if err != nil {
		return err
	}

	now := time.Now()
	if len(ids) == 0 {
		// Nothing left to schedule; run the completion check directly
		// so the status converges without waiting on a timer.
		_, err := s.tasks.Schedule(ctx, model.TaskKindCompletion,
			model.CampaignTaskPayload{CampaignID: campaign.ID}, now)
		return err
	}

	batches := 0
	for start := 0; start < len(ids); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		_, err := s.tasks.Schedule(ctx, model.TaskKindSendBatch,
			model.CampaignTaskPayload{CampaignID: campaign.ID, RecipientIDs: ids[start:end]},
			now.Add(time.Duration(batches)*s.cfg.BatchDelay),
		)
		if err != nil {
			return err
		}
		batches++
	}

	completionAt := now.Add(time.Duration(batches)*s.cfg.BatchDelay + s.cfg.CompletionDelay)
	if _, err := s.tasks.Schedule(ctx, model.TaskKindCompletion,
		model.CampaignTaskPayload{CampaignID: campaign.ID}, completionAt); err != nil {
		return err
	}

	s.logger.Info("Campaign queued",
		"campaign_id", campaign.ID.String(),
		"recipients", len(ids),
		"batches", batches)
	return nil
}
