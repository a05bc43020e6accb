package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/email"
)

// SendTestEmail delivers a preview of the campaign to a test
// recipient. Test rows never touch the campaign's production counters
// and are ignored by dispatch and completion.
func (s *Service) SendTestEmail(ctx context.Context, campaignID, recipientID uuid.UUID) error {
	recipient, err := s.recipients.Get(ctx, recipientID)
	if err != nil {
		return err
	}
	if !recipient.IsTest {
		return fmt.Errorf("recipient %s is not a test recipient", recipientID)
	}

	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	unsubscribeURL, err := s.unsubscribeURL(recipient)
	if err != nil {
		return err
	}

	msg := &email.Message{
		From:    campaign.FromEmail,
		To:      recipient.Email,
		Subject: "[TEST] " + campaign.Subject,
		Body:    renderPlain(testPlainBanner+campaign.Message, recipient.DisplayName(), unsubscribeURL),
	}
	if campaign.HTMLMessage != nil && *campaign.HTMLMessage != "" {
		msg.HTMLBody = renderHTML(testHTMLBanner+*campaign.HTMLMessage, recipient.DisplayName(), unsubscribeURL)
	}

	messageID, err := s.sender.Send(ctx, msg)
	if err != nil {
		if markErr := s.recipients.MarkFailed(ctx, recipientID, truncateError(err)); markErr != nil {
			s.logger.Error(markErr, "Failed to mark test recipient failed")
		}
		return fmt.Errorf("test send failed: %w", err)
	}

	var msgID *string
	if messageID != "" {
		msgID = &messageID
	}
	return s.recipients.MarkSent(ctx, recipientID, msgID, time.Now())
}
