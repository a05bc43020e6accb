package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mmo-mn/olympiad-api/internal/config"
	"github.com/mmo-mn/olympiad-api/internal/email"
	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository/postgres"
	"github.com/mmo-mn/olympiad-api/internal/service/mailer"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
	"github.com/mmo-mn/olympiad-api/pkg/messaging"
	"github.com/mmo-mn/olympiad-api/pkg/messaging/redis"
	"github.com/mmo-mn/olympiad-api/pkg/metrics"
	"github.com/mmo-mn/olympiad-api/pkg/security"
	"github.com/mmo-mn/olympiad-api/pkg/worker"
)

var (
	resumeSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_resume_sweeps_total",
		Help: "The total number of paused-campaign resume sweeps",
	})
	resumeSweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_resume_sweep_failures_total",
		Help: "The total number of failed resume sweeps",
	})
)

func setupHealthCheck(logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("Failed to load config")
		os.Exit(1)
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.ZL.Fatal().Err(err).Msg("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	baseRepo := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(baseRepo)
	campaignRepo := postgres.NewCampaignRepository(baseRepo)
	recipientRepo := postgres.NewRecipientRepository(baseRepo)
	suppressionRepo := postgres.NewSuppressionRepository(baseRepo)
	taskRepo := postgres.NewTaskRepository(baseRepo)

	workerMetrics := metrics.NewMetrics("olympiad", "worker")
	mailerSvc := mailer.NewService(
		campaignRepo, recipientRepo, suppressionRepo, userRepo, taskRepo,
		email.NewSMTPSender(cfg.SMTP),
		security.NewSigner(cfg.Mailer.TokenSecret),
		broker,
		workerMetrics,
		appLogger,
		cfg.Mailer,
	)

	processor := worker.NewTaskProcessor(
		taskRepo,
		worker.TaskProcessorConfig{
			BatchSize:     cfg.Worker.BatchSize,
			PollInterval:  cfg.Worker.PollInterval,
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryDelay:    cfg.Worker.RetryDelay,
		},
		appLogger,
		workerMetrics,
	)
	registerHandlers(processor, mailerSvc)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.ZL.Info().Msg("Shutting down...")
		cancel()
	}()

	go resumeSweepLoop(ctx, mailerSvc, cfg.Worker.ResumeSweep, appLogger)
	subscribeSuppressionEvents(ctx, broker, mailerSvc, appLogger)

	processor.Start(ctx)
}

func registerHandlers(processor *worker.TaskProcessor, svc *mailer.Service) {
	processor.Register(model.TaskKindBuildFilters, func(ctx context.Context, task *model.ScheduledTask) error {
		payload, err := decodePayload(task)
		if err != nil {
			return err
		}
		return svc.BuildFromFilters(ctx, payload.CampaignID)
	})

	processor.Register(model.TaskKindBuildList, func(ctx context.Context, task *model.ScheduledTask) error {
		payload, err := decodePayload(task)
		if err != nil {
			return err
		}
		return svc.BuildFromList(ctx, payload.CampaignID, payload.EmailList)
	})

	processor.Register(model.TaskKindDispatch, func(ctx context.Context, task *model.ScheduledTask) error {
		payload, err := decodePayload(task)
		if err != nil {
			return err
		}
		return svc.DispatchCampaign(ctx, payload.CampaignID)
	})

	processor.Register(model.TaskKindSendBatch, func(ctx context.Context, task *model.ScheduledTask) error {
		payload, err := decodePayload(task)
		if err != nil {
			return err
		}
		return svc.SendBatch(ctx, payload.CampaignID, payload.RecipientIDs)
	})

	processor.Register(model.TaskKindCompletion, func(ctx context.Context, task *model.ScheduledTask) error {
		payload, err := decodePayload(task)
		if err != nil {
			return err
		}
		return svc.CheckCompletion(ctx, payload.CampaignID)
	})

	processor.Register(model.TaskKindTestSend, func(ctx context.Context, task *model.ScheduledTask) error {
		payload, err := decodePayload(task)
		if err != nil {
			return err
		}
		if payload.RecipientID == nil {
			return fmt.Errorf("test send task %s has no recipient", task.ID)
		}
		return svc.SendTestEmail(ctx, payload.CampaignID, *payload.RecipientID)
	})
}

func decodePayload(task *model.ScheduledTask) (*model.CampaignTaskPayload, error) {
	var payload model.CampaignTaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("malformed payload for task %s: %w", task.ID, err)
	}
	return &payload, nil
}

// subscribeSuppressionEvents listens for bounces recorded by the API
// process. The suppression sets are cached per process, so a webhook
// landing on the API would otherwise go unseen here until the cache
// expires.
func subscribeSuppressionEvents(ctx context.Context, broker messaging.Broker, svc *mailer.Service, logger *logger.Logger) {
	adapter := messaging.NewBrokerAdapter(broker)
	err := adapter.Subscribe(ctx, mailer.EventBounceRecorded, func([]byte) error {
		svc.InvalidateSuppressionCache()
		return nil
	})
	if err != nil {
		logger.Error(err, "Failed to subscribe to bounce events")
	}
}

// resumeSweepLoop periodically restarts paused campaigns whose quota
// window has rolled over.
func resumeSweepLoop(ctx context.Context, svc *mailer.Service, interval time.Duration, logger *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resumeSweeps.Inc()
			if err := svc.ResumePaused(ctx); err != nil {
				resumeSweepFailures.Inc()
				logger.Error(err, "Resume sweep failed")
			}
		}
	}
}
