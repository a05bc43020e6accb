package mailer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/pkg/messaging"
)

// CheckCompletion closes the dispatch loop. It is a no-op unless the
// campaign is sending or paused. With no pending non-test recipients
// left the campaign finishes; with quota exhausted it pauses; otherwise
// the check reschedules itself, which keeps a multi-slice send
// converging even when slice timing drifts.
func (s *Service) CheckCompletion(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	if campaign.Status != model.CampaignStatusSending && campaign.Status != model.CampaignStatusPaused {
		return nil
	}

	pending, err := s.recipients.CountPending(ctx, campaignID)
	if err != nil {
		return err
	}

	if pending == 0 {
		now := time.Now()
		if err := s.campaigns.MarkSent(ctx, campaignID, now); err != nil {
			return err
		}
		s.metrics.CampaignsFinished.Inc()
		s.logger.Info("Campaign completed", "campaign_id", campaignID.String())
		s.publish(ctx, EventCampaignSent, campaign)
		return nil
	}

	remaining, err := s.CheckDailyLimit(ctx, campaign)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		if err := s.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusPaused); err != nil {
			return err
		}
		s.metrics.CampaignsPaused.Inc()
		s.logger.Info("Campaign paused by daily limit", "campaign_id", campaignID.String())
		s.publish(ctx, EventCampaignPaused, campaign)
		return nil
	}

	_, err = s.tasks.Schedule(ctx, model.TaskKindCompletion,
		model.CampaignTaskPayload{CampaignID: campaignID},
		time.Now().Add(s.cfg.CompletionDelay))
	return err
}

// ResumePaused re-dispatches every paused campaign whose daily budget
// has refreshed. Driven by the worker's periodic sweep, it is what lets
// a quota-throttled campaign continue the next day unattended.
func (s *Service) ResumePaused(ctx context.Context) error {
	paused, err := s.campaigns.ListByStatus(ctx, model.CampaignStatusPaused)
	if err != nil {
		return err
	}

	for _, campaign := range paused {
		remaining, err := s.CheckDailyLimit(ctx, campaign)
		if err != nil {
			s.logger.Error(err, "Failed to check quota for paused campaign", "campaign_id", campaign.ID.String())
			continue
		}
		if remaining <= 0 {
			continue
		}

		s.logger.Info("Resuming paused campaign",
			"campaign_id", campaign.ID.String(),
			"name", campaign.Name)
		if _, err := s.tasks.Schedule(ctx, model.TaskKindDispatch,
			model.CampaignTaskPayload{CampaignID: campaign.ID}, time.Now()); err != nil {
			s.logger.Error(err, "Failed to schedule resume", "campaign_id", campaign.ID.String())
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event string, campaign *model.Campaign) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{
		Type: event,
		Payload: map[string]interface{}{
			"campaign_id":  campaign.ID.String(),
			"name":         campaign.Name,
			"sent_count":   campaign.SentCount,
			"failed_count": campaign.FailedCount,
		},
	}
	if err := s.broker.Publish(ctx, event, msg); err != nil {
		s.logger.Error(err, "Failed to publish event", "event", event)
	}
}
