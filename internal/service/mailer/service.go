package mailer

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mmo-mn/olympiad-api/internal/config"
	"github.com/mmo-mn/olympiad-api/internal/email"
	"github.com/mmo-mn/olympiad-api/internal/repository"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
	"github.com/mmo-mn/olympiad-api/pkg/messaging"
	"github.com/mmo-mn/olympiad-api/pkg/metrics"
	"github.com/mmo-mn/olympiad-api/pkg/security"
)

// suppressionReason is the fixed diagnostic recorded on recipients
// excluded by the suppression filter.
const suppressionReason = "User unsubscribed or bounced"

// maxErrorLength bounds the stored per-recipient error text.
const maxErrorLength = 500

// Lifecycle event channels published on the broker.
const (
	EventCampaignSent   = "campaign.sent"
	EventCampaignPaused = "campaign.paused"
	EventBounceRecorded = "bounce.recorded"
)

// Service is the campaign dispatch pipeline: recipient building, quota
// tracking, batch dispatch, delivery, completion monitoring and
// bounce/complaint ingestion. All cross-stage hand-offs go through the
// durable task queue, never direct calls.
type Service struct {
	campaigns    repository.CampaignRepository
	recipients   repository.RecipientRepository
	suppressions repository.SuppressionRepository
	users        repository.UserRepository
	tasks        repository.TaskRepository

	sender  email.Sender
	signer  *security.Signer
	broker  messaging.Publisher
	cache   *gocache.Cache
	metrics *metrics.Metrics
	logger  *logger.Logger
	cfg     config.MailerConfig
}

func NewService(
	campaigns repository.CampaignRepository,
	recipients repository.RecipientRepository,
	suppressions repository.SuppressionRepository,
	users repository.UserRepository,
	tasks repository.TaskRepository,
	sender email.Sender,
	signer *security.Signer,
	broker messaging.Publisher,
	m *metrics.Metrics,
	l *logger.Logger,
	cfg config.MailerConfig,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 60
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 5 * time.Second
	}
	if cfg.CompletionDelay <= 0 {
		cfg.CompletionDelay = 60 * time.Second
	}
	if cfg.InsertBatchSize <= 0 {
		cfg.InsertBatchSize = 1000
	}

	return &Service{
		campaigns:    campaigns,
		recipients:   recipients,
		suppressions: suppressions,
		users:        users,
		tasks:        tasks,
		sender:       sender,
		signer:       signer,
		broker:       broker,
		cache:        gocache.New(time.Minute, 5*time.Minute),
		metrics:      m,
		logger:       l,
		cfg:          cfg,
	}
}

// InvalidateSuppressionCache drops the cached suppression sets so the
// next batch re-reads them. Called when another process records a
// bounce or unsubscribe this one has not seen.
func (s *Service) InvalidateSuppressionCache() {
	s.cache.Delete(cacheKeyUnsubscribed)
	s.cache.Delete(cacheKeyBlocked)
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength]
	}
	return msg
}
