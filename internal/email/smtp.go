package email

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/mmo-mn/olympiad-api/internal/config"
	"github.com/mmo-mn/olympiad-api/pkg/circuitbreaker"
)

// smtpSender delivers through an SMTP relay via gomail. Sends go
// through a circuit breaker so a dead relay fails fast instead of
// holding worker slots on timeouts.
type smtpSender struct {
	dialer *gomail.Dialer
	cb     *circuitbreaker.CircuitBreaker
}

func NewSMTPSender(cfg config.SMTPConfig) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxRequests: 10,
			Interval:    30 * time.Second,
			Timeout:     time.Minute,
		}),
	}
}

func (s *smtpSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	messageID := fmt.Sprintf("<%s@olympiad-api>", uuid.New())
	m.SetHeader("Message-ID", messageID)

	m.SetBody("text/plain", msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	err := s.cb.Execute(func() error {
		return s.dialer.DialAndSend(m)
	})
	if err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}
	return messageID, nil
}
