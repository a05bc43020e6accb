package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/email"
	"github.com/mmo-mn/olympiad-api/internal/model"
)

const (
	cacheKeyUnsubscribed = "unsubscribed_users"
	cacheKeyBlocked      = "blocked_emails"
)

// SendBatch delivers one slice of a campaign. Recipients are processed
// strictly sequentially; a per-recipient failure is recorded and never
// aborts the rest of the slice.
func (s *Service) SendBatch(ctx context.Context, campaignID uuid.UUID, recipientIDs []uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	recipients, err := s.recipients.ListPendingByIDs(ctx, recipientIDs)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	unsubscribed, blocked, err := s.suppressionSets(ctx)
	if err != nil {
		return err
	}

	sent, failed, suppressed := 0, 0, 0
	for _, recipient := range recipients {
		if s.isSuppressed(recipient, unsubscribed, blocked) {
			if err := s.recipients.MarkFailed(ctx, recipient.ID, suppressionReason); err != nil {
				s.logger.Error(err, "Failed to mark suppressed recipient", "recipient_id", recipient.ID.String())
				continue
			}
			if err := s.campaigns.IncrementFailed(ctx, campaignID); err != nil {
				s.logger.Error(err, "Failed to bump failed counter", "campaign_id", campaignID.String())
			}
			s.metrics.EmailsSuppressed.Inc()
			suppressed++
			continue
		}

		if err := s.deliver(ctx, campaign, recipient); err != nil {
			if markErr := s.recipients.MarkFailed(ctx, recipient.ID, truncateError(err)); markErr != nil {
				s.logger.Error(markErr, "Failed to mark recipient failed", "recipient_id", recipient.ID.String())
			}
			if incErr := s.campaigns.IncrementFailed(ctx, campaignID); incErr != nil {
				s.logger.Error(incErr, "Failed to bump failed counter", "campaign_id", campaignID.String())
			}
			s.metrics.EmailsFailed.Inc()
			s.logger.Error(err, "Failed to send", "email", recipient.Email)
			failed++
			continue
		}
		sent++
	}

	s.logger.Info("Batch finished",
		"campaign_id", campaignID.String(),
		"sent", sent, "failed", failed, "suppressed", suppressed)
	return nil
}

// deliver renders and sends one personalized message, then records the
// outcome with atomic relative counter increments.
func (s *Service) deliver(ctx context.Context, campaign *model.Campaign, recipient *model.Recipient) error {
	unsubscribeURL, err := s.unsubscribeURL(recipient)
	if err != nil {
		return err
	}

	msg := &email.Message{
		From:    campaign.FromEmail,
		To:      recipient.Email,
		Subject: campaign.Subject,
		Body:    renderPlain(campaign.Message, recipient.DisplayName(), unsubscribeURL),
	}
	if campaign.HTMLMessage != nil && *campaign.HTMLMessage != "" {
		msg.HTMLBody = renderHTML(*campaign.HTMLMessage, recipient.DisplayName(), unsubscribeURL)
	}

	messageID, err := s.sender.Send(ctx, msg)
	if err != nil {
		return err
	}

	var msgID *string
	if messageID != "" {
		msgID = &messageID
	}
	if err := s.recipients.MarkSent(ctx, recipient.ID, msgID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark recipient sent: %w", err)
	}
	if err := s.campaigns.IncrementSent(ctx, campaign.ID); err != nil {
		return fmt.Errorf("failed to bump sent counters: %w", err)
	}
	s.metrics.EmailsSent.Inc()
	return nil
}

func (s *Service) isSuppressed(recipient *model.Recipient, unsubscribed map[uuid.UUID]struct{}, blocked map[string]struct{}) bool {
	if recipient.UserID != nil {
		if _, ok := unsubscribed[*recipient.UserID]; ok {
			return true
		}
	}
	_, ok := blocked[recipient.Email]
	return ok
}

// suppressionSets loads the unsubscribe and blocked-address sets,
// cached briefly so every slice of a large send does not re-read them.
func (s *Service) suppressionSets(ctx context.Context) (map[uuid.UUID]struct{}, map[string]struct{}, error) {
	var unsubscribed map[uuid.UUID]struct{}
	if cached, ok := s.cache.Get(cacheKeyUnsubscribed); ok {
		unsubscribed = cached.(map[uuid.UUID]struct{})
	} else {
		var err error
		unsubscribed, err = s.suppressions.GetUnsubscribedUserIDs(ctx)
		if err != nil {
			return nil, nil, err
		}
		s.cache.SetDefault(cacheKeyUnsubscribed, unsubscribed)
	}

	var blocked map[string]struct{}
	if cached, ok := s.cache.Get(cacheKeyBlocked); ok {
		blocked = cached.(map[string]struct{})
	} else {
		var err error
		blocked, err = s.suppressions.GetBlockedEmails(ctx)
		if err != nil {
			return nil, nil, err
		}
		s.cache.SetDefault(cacheKeyBlocked, blocked)
	}

	return unsubscribed, blocked, nil
}

// unsubscribeURL builds the signed opt-out link for a recipient. The
// token binds the account id when one is linked, the raw address
// otherwise.
func (s *Service) unsubscribeURL(recipient *model.Recipient) (string, error) {
	value := recipient.Email
	if recipient.UserID != nil {
		value = recipient.UserID.String()
	}
	token := s.signer.Sign(value)
	return fmt.Sprintf("%s/unsubscribe?token=%s", s.cfg.SiteURL, token), nil
}
