package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mmo-mn/olympiad-api/internal/config"
	"github.com/mmo-mn/olympiad-api/internal/email"
	accountHandler "github.com/mmo-mn/olympiad-api/internal/handler/account"
	campaignHandler "github.com/mmo-mn/olympiad-api/internal/handler/campaign"
	healthHandler "github.com/mmo-mn/olympiad-api/internal/handler/health"
	olympiadHandler "github.com/mmo-mn/olympiad-api/internal/handler/olympiad"
	postHandler "github.com/mmo-mn/olympiad-api/internal/handler/post"
	prometheusHandler "github.com/mmo-mn/olympiad-api/internal/handler/prometheus"
	schoolHandler "github.com/mmo-mn/olympiad-api/internal/handler/school"
	unsubscribeHandler "github.com/mmo-mn/olympiad-api/internal/handler/unsubscribe"
	webhookHandler "github.com/mmo-mn/olympiad-api/internal/handler/webhook"
	"github.com/mmo-mn/olympiad-api/internal/middleware"
	"github.com/mmo-mn/olympiad-api/internal/repository/postgres"
	"github.com/mmo-mn/olympiad-api/internal/router"
	accountService "github.com/mmo-mn/olympiad-api/internal/service/account"
	campaignService "github.com/mmo-mn/olympiad-api/internal/service/campaign"
	"github.com/mmo-mn/olympiad-api/internal/service/mailer"
	olympiadService "github.com/mmo-mn/olympiad-api/internal/service/olympiad"
	postService "github.com/mmo-mn/olympiad-api/internal/service/post"
	schoolService "github.com/mmo-mn/olympiad-api/internal/service/school"
	"github.com/mmo-mn/olympiad-api/pkg/auth"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
	"github.com/mmo-mn/olympiad-api/pkg/messaging/redis"
	"github.com/mmo-mn/olympiad-api/pkg/metrics"
	"github.com/mmo-mn/olympiad-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
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
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	baseRepo := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(baseRepo)
	campaignRepo := postgres.NewCampaignRepository(baseRepo)
	recipientRepo := postgres.NewRecipientRepository(baseRepo)
	suppressionRepo := postgres.NewSuppressionRepository(baseRepo)
	taskRepo := postgres.NewTaskRepository(baseRepo)
	schoolRepo := postgres.NewSchoolRepository(baseRepo)
	postRepo := postgres.NewPostRepository(baseRepo)
	olympiadRepo := postgres.NewOlympiadRepository(baseRepo)

	jwtService := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshExpiryHours)*time.Hour,
	)
	hasher := security.NewBcryptHasher(0)
	signer := security.NewSigner(cfg.Mailer.TokenSecret)
	sender := email.NewSMTPSender(cfg.SMTP)
	apiMetrics := metrics.NewMetrics("olympiad", "api")

	mailerSvc := mailer.NewService(
		campaignRepo, recipientRepo, suppressionRepo, userRepo, taskRepo,
		sender, signer, broker, apiMetrics, appLogger, cfg.Mailer,
	)
	accountSvc := accountService.NewService(
		userRepo, schoolRepo, hasher, jwtService,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour, appLogger,
	)
	campaignSvc := campaignService.NewService(campaignRepo, recipientRepo, userRepo, taskRepo, appLogger)
	schoolSvc := schoolService.NewService(schoolRepo)
	postSvc := postService.NewService(postRepo, appLogger)
	olympiadSvc := olympiadService.NewService(olympiadRepo, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db),
		prometheusHandler.New(),
		accountHandler.NewHandler(accountSvc),
		campaignHandler.NewHandler(campaignSvc),
		webhookHandler.NewHandler(mailerSvc),
		unsubscribeHandler.NewHandler(mailerSvc),
		postHandler.NewHandler(postSvc),
		schoolHandler.NewHandler(schoolSvc),
		olympiadHandler.NewHandler(olympiadSvc),
		router.Config{
			RateLimit:  rate.Limit(100),
			RateBurst:  200,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
