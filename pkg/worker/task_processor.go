package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
	"github.com/mmo-mn/olympiad-api/pkg/metrics"
)

// HandlerFunc processes one claimed task.
type HandlerFunc func(ctx context.Context, task *model.ScheduledTask) error

type TaskProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// TaskProcessor drains the durable task queue: it claims due tasks on
// an interval and dispatches each to the handler registered for its
// kind. Failed tasks are re-scheduled with a delay until their attempt
// budget runs out.
type TaskProcessor struct {
	repo     repository.TaskRepository
	handlers map[string]HandlerFunc
	config   TaskProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewTaskProcessor(
	repo repository.TaskRepository,
	config TaskProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *TaskProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &TaskProcessor{
		repo:     repo,
		handlers: make(map[string]HandlerFunc),
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Register binds a handler to a task kind. Not safe to call after Start.
func (p *TaskProcessor) Register(kind string, handler HandlerFunc) {
	p.handlers[kind] = handler
}

func (p *TaskProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting task processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down task processor")
			return
		case <-ticker.C:
			if err := p.processDue(ctx); err != nil {
				p.logger.Error(err, "Failed to process tasks")
			}
		}
	}
}

func (p *TaskProcessor) processDue(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.TaskProcessingLatency)
	defer timer.ObserveDuration()

	tasks, err := p.repo.ClaimDue(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_due_tasks", "error").Inc()
		return fmt.Errorf("failed to claim due tasks: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_due_tasks", "success").Inc()

	for _, task := range tasks {
		if err := p.processTask(ctx, task); err != nil {
			p.logger.Error(err, "Failed to process task",
				"task_id", task.ID.String(),
				"kind", task.Kind)
		}
	}
	return nil
}

func (p *TaskProcessor) processTask(ctx context.Context, task *model.ScheduledTask) error {
	handler, ok := p.handlers[task.Kind]
	if !ok {
		err := fmt.Errorf("no handler registered for kind %q", task.Kind)
		p.metrics.TasksFailed.WithLabelValues(task.Kind).Inc()
		errStr := err.Error()
		if updateErr := p.repo.MarkFailed(ctx, task.ID, errStr, nil); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update task status")
		}
		return err
	}

	if err := handler(ctx, task); err != nil {
		if task.Attempts < p.config.RetryAttempts {
			p.metrics.TaskRetries.WithLabelValues(task.Kind).Inc()
			retryAt := time.Now().Add(p.config.RetryDelay * time.Duration(task.Attempts))
			if updateErr := p.repo.MarkFailed(ctx, task.ID, err.Error(), &retryAt); updateErr != nil {
				p.logger.Error(updateErr, "Failed to reschedule task")
			}
			return err
		}

		p.metrics.TasksFailed.WithLabelValues(task.Kind).Inc()
		if updateErr := p.repo.MarkFailed(ctx, task.ID, err.Error(), nil); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update task status")
		}
		return err
	}

	p.metrics.TasksProcessed.WithLabelValues(task.Kind).Inc()
	if err := p.repo.MarkDone(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task done: %w", err)
	}
	return nil
}
