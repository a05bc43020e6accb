package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/pkg/messaging"
)

// SNS message type header values.
const (
	MessageTypeSubscription = "SubscriptionConfirmation"
	MessageTypeNotification = "Notification"
)

// snsEnvelope is the outer push payload; Message carries the SES
// notification as a JSON string.
type snsEnvelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

type sesNotification struct {
	NotificationType string        `json:"notificationType"`
	Bounce           *sesBounce    `json:"bounce"`
	Complaint        *sesComplaint `json:"complaint"`
	Mail             *sesMail      `json:"mail"`
}

type sesBounce struct {
	BounceType        string         `json:"bounceType"`
	BouncedRecipients []sesRecipient `json:"bouncedRecipients"`
}

type sesComplaint struct {
	ComplainedRecipients []sesRecipient `json:"complainedRecipients"`
}

type sesRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

type sesMail struct {
	MessageID string `json:"messageId"`
}

// HandleNotification ingests one delivery-provider push. It recognizes
// the one-time subscription handshake, bounce notifications and
// complaint notifications; anything else is acknowledged and ignored.
// A malformed payload yields an error without touching any state.
func (s *Service) HandleNotification(ctx context.Context, messageType string, body []byte) (string, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to parse notification envelope: %w", err)
	}

	switch messageType {
	case MessageTypeSubscription:
		s.logger.Info("SNS subscription confirmation received", "subscribe_url", envelope.SubscribeURL)
		return "pending_confirmation", nil

	case MessageTypeNotification:
		var notification sesNotification
		if err := json.Unmarshal([]byte(envelope.Message), &notification); err != nil {
			return "", fmt.Errorf("failed to parse inner notification: %w", err)
		}

		switch notification.NotificationType {
		case "Bounce":
			if err := s.ingestBounce(ctx, &notification, envelope.Message); err != nil {
				return "", err
			}
		case "Complaint":
			if err := s.ingestComplaint(ctx, &notification, envelope.Message); err != nil {
				return "", err
			}
		default:
			s.logger.Warn("Unrecognized notification type", "type", notification.NotificationType)
		}
		return "success", nil
	}

	return "ignored", nil
}

// ingestBounce appends one Bounce row per reported address. Only hard
// (permanent) bounces move already-delivered recipient rows to
// bounced; soft bounces are logged for diagnostics but do not
// suppress.
func (s *Service) ingestBounce(ctx context.Context, notification *sesNotification, raw string) error {
	if notification.Bounce == nil {
		return fmt.Errorf("bounce notification missing bounce block")
	}

	bounceType := model.BounceTypeSoft
	if notification.Bounce.BounceType == "Permanent" {
		bounceType = model.BounceTypeHard
	}

	var messageID *string
	if notification.Mail != nil && notification.Mail.MessageID != "" {
		messageID = &notification.Mail.MessageID
	}

	for _, recipient := range notification.Bounce.BouncedRecipients {
		if recipient.EmailAddress == "" {
			continue
		}
		// recipient rows store lowercase addresses
		addr := strings.ToLower(recipient.EmailAddress)

		bounce := &model.Bounce{
			Email:            addr,
			BounceType:       bounceType,
			MessageID:        messageID,
			NotificationData: []byte(raw),
		}
		if err := s.suppressions.InsertBounce(ctx, bounce); err != nil {
			return err
		}
		s.metrics.BouncesRecorded.WithLabelValues(bounceType).Inc()

		if bounceType == model.BounceTypeHard {
			if _, err := s.recipients.MarkBouncedByEmail(ctx, addr, true, "hard bounce"); err != nil {
				return err
			}
		}

		s.cache.Delete(cacheKeyBlocked)
		s.logger.Info("Recorded bounce",
			"email", addr,
			"bounce_type", bounceType)
		s.publishBounce(ctx, addr, bounceType)
	}
	return nil
}

// ingestComplaint records the complaint, permanently unsubscribes every
// account on the address, and moves all recipient rows for it to
// bounced.
func (s *Service) ingestComplaint(ctx context.Context, notification *sesNotification, raw string) error {
	if notification.Complaint == nil {
		return fmt.Errorf("complaint notification missing complaint block")
	}

	for _, recipient := range notification.Complaint.ComplainedRecipients {
		if recipient.EmailAddress == "" {
			continue
		}
		addr := strings.ToLower(recipient.EmailAddress)

		bounce := &model.Bounce{
			Email:            addr,
			BounceType:       model.BounceTypeComplaint,
			NotificationData: []byte(raw),
		}
		if err := s.suppressions.InsertBounce(ctx, bounce); err != nil {
			return err
		}
		s.metrics.BouncesRecorded.WithLabelValues(model.BounceTypeComplaint).Inc()

		userIDs, err := s.users.FindIDsByEmail(ctx, addr)
		if err != nil {
			return err
		}
		reason := "Spam complaint"
		for _, userID := range userIDs {
			unsub := &model.Unsubscribe{
				UserID: userID,
				Email:  addr,
				Reason: &reason,
			}
			if err := s.suppressions.UpsertUnsubscribe(ctx, unsub); err != nil {
				return err
			}
		}

		if _, err := s.recipients.MarkBouncedByEmail(ctx, addr, false, reason); err != nil {
			return err
		}

		s.cache.Delete(cacheKeyBlocked)
		s.cache.Delete(cacheKeyUnsubscribed)
		s.logger.Warn("Recorded complaint and auto-unsubscribed",
			"email", addr,
			"accounts", len(userIDs))
		s.publishBounce(ctx, addr, model.BounceTypeComplaint)
	}
	return nil
}

func (s *Service) publishBounce(ctx context.Context, email, bounceType string) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{
		Type:    EventBounceRecorded,
		Payload: map[string]interface{}{"email": email, "bounce_type": bounceType},
	}
	if err := s.broker.Publish(ctx, EventBounceRecorded, msg); err != nil {
		s.logger.Error(err, "Failed to publish bounce event")
	}
}
