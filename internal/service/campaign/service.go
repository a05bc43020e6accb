package campaign

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
)

// Service is the operator surface for campaigns: creation, lifecycle
// commands and progress reporting. It never delivers mail itself; every
// pipeline stage is handed to the task queue.
type Service interface {
	Create(ctx context.Context, operatorID uuid.UUID, req *model.CreateCampaignRequest) (*model.Campaign, error)
	List(ctx context.Context, operatorID uuid.UUID) ([]*model.Campaign, error)
	Get(ctx context.Context, id, operatorID uuid.UUID) (*model.Campaign, error)
	Send(ctx context.Context, id, operatorID uuid.UUID) error
	Pause(ctx context.Context, id, operatorID uuid.UUID) error
	Resume(ctx context.Context, id, operatorID uuid.UUID) error
	Stats(ctx context.Context, id, operatorID uuid.UUID) (*model.CampaignStats, error)
	QueueTestEmail(ctx context.Context, id, operatorID uuid.UUID, testEmail string) error
}

type service struct {
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
	users      repository.UserRepository
	tasks      repository.TaskRepository
	logger     *logger.Logger
}

func NewService(
	campaigns repository.CampaignRepository,
	recipients repository.RecipientRepository,
	users repository.UserRepository,
	tasks repository.TaskRepository,
	logger *logger.Logger,
) Service {
	return &service{
		campaigns:  campaigns,
		recipients: recipients,
		users:      users,
		tasks:      tasks,
		logger:     logger,
	}
}

// Create validates the selection mode and enqueues the matching
// recipient-build task. Custom-list and filter selection are mutually
// exclusive by construction.
func (s *service) Create(ctx context.Context, operatorID uuid.UUID, req *model.CreateCampaignRequest) (*model.Campaign, error) {
	if err := validateSelection(req); err != nil {
		return nil, err
	}

	campaign := &model.Campaign{
		Name:                 req.Name,
		Subject:              req.Subject,
		Message:              req.Message,
		HTMLMessage:          req.HTMLMessage,
		FromEmail:            req.FromEmail,
		CreatedBy:            operatorID,
		DailyLimit:           req.DailyLimit,
		UseCustomList:        req.UseCustomList,
		FilterActiveYear:     req.FilterActiveYear,
		FilterTeachers:       req.FilterTeachers,
		FilterStudents:       req.FilterStudents,
		FilterSchoolManagers: req.FilterSchoolManagers,
		ProvinceID:           req.ProvinceID,
		SchoolID:             req.SchoolID,
	}
	if campaign.DailyLimit <= 0 {
		campaign.DailyLimit = model.DefaultDailyLimit
	}
	if campaign.FromEmail == "" {
		campaign.FromEmail = model.FromEmailChoices[0]
	} else if !validFromEmail(campaign.FromEmail) {
		return nil, fmt.Errorf("from_email %q is not an allowed sender address", campaign.FromEmail)
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	kind := model.TaskKindBuildFilters
	payload := model.CampaignTaskPayload{CampaignID: campaign.ID}
	if campaign.UseCustomList {
		kind = model.TaskKindBuildList
		payload.EmailList = req.EmailList
	}
	if _, err := s.tasks.Schedule(ctx, kind, payload, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to queue recipient build: %w", err)
	}

	s.logger.Info("Campaign created",
		"campaign_id", campaign.ID.String(),
		"custom_list", campaign.UseCustomList)
	return campaign, nil
}

func validateSelection(req *model.CreateCampaignRequest) error {
	hasFilters := req.FilterActiveYear || req.FilterTeachers || req.FilterStudents ||
		req.FilterSchoolManagers || req.ProvinceID != nil || req.SchoolID != nil

	if req.UseCustomList {
		if hasFilters {
			return fmt.Errorf("custom list and filter selection are mutually exclusive")
		}
		if req.EmailList == "" {
			return fmt.Errorf("custom list selected but email_list is empty")
		}
		return nil
	}
	if req.EmailList != "" {
		return fmt.Errorf("email_list provided without use_custom_list")
	}
	return nil
}

func validFromEmail(addr string) bool {
	for _, choice := range model.FromEmailChoices {
		if addr == choice {
			return true
		}
	}
	return false
}

func (s *service) List(ctx context.Context, operatorID uuid.UUID) ([]*model.Campaign, error) {
	return s.campaigns.ListByOperator(ctx, operatorID)
}

func (s *service) Get(ctx context.Context, id, operatorID uuid.UUID) (*model.Campaign, error) {
	return s.campaigns.GetForOperator(ctx, id, operatorID)
}

// Send queues the dispatch stage. Reports already-in-progress instead
// of double-dispatching.
func (s *service) Send(ctx context.Context, id, operatorID uuid.UUID) error {
	campaign, err := s.campaigns.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return err
	}
	if campaign.Status == model.CampaignStatusSent || campaign.Status == model.CampaignStatusSending {
		return fmt.Errorf("campaign already %s", campaign.Status)
	}

	_, err = s.tasks.Schedule(ctx, model.TaskKindDispatch,
		model.CampaignTaskPayload{CampaignID: id}, time.Now())
	return err
}

// Pause is a soft stop: batches already scheduled still run, but the
// completion monitor will not schedule more.
func (s *service) Pause(ctx context.Context, id, operatorID uuid.UUID) error {
	campaign, err := s.campaigns.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusSending {
		return fmt.Errorf("only a sending campaign can be paused")
	}
	return s.campaigns.UpdateStatus(ctx, id, model.CampaignStatusPaused)
}

func (s *service) Resume(ctx context.Context, id, operatorID uuid.UUID) error {
	campaign, err := s.campaigns.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusPaused {
		return fmt.Errorf("only a paused campaign can be resumed")
	}

	_, err = s.tasks.Schedule(ctx, model.TaskKindDispatch,
		model.CampaignTaskPayload{CampaignID: id}, time.Now())
	return err
}

func (s *service) Stats(ctx context.Context, id, operatorID uuid.UUID) (*model.CampaignStats, error) {
	campaign, err := s.campaigns.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, err
	}

	pending, err := s.recipients.CountPending(ctx, id)
	if err != nil {
		return nil, err
	}

	progress := 0.0
	if campaign.TotalRecipients > 0 {
		completed := campaign.SentCount + campaign.FailedCount
		progress = math.Round(float64(completed)/float64(campaign.TotalRecipients)*1000) / 10
	}

	return &model.CampaignStats{
		Status:          campaign.StatusLabel(),
		SentCount:       campaign.SentCount,
		FailedCount:     campaign.FailedCount,
		PendingCount:    pending,
		ProgressPercent: progress,
	}, nil
}

// QueueTestEmail creates or refreshes the test recipient row for the
// address and schedules a preview send.
func (s *service) QueueTestEmail(ctx context.Context, id, operatorID uuid.UUID, testEmail string) error {
	campaign, err := s.campaigns.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return err
	}

	recipient := &model.Recipient{
		CampaignID: campaign.ID,
		Email:      testEmail,
		Name:       "Test User",
	}
	if user, err := s.users.GetByEmail(ctx, testEmail); err == nil && user != nil {
		userID := user.ID
		recipient.UserID = &userID
	}

	if err := s.recipients.UpsertTest(ctx, recipient); err != nil {
		return err
	}

	recipientID := recipient.ID
	payload := model.CampaignTaskPayload{CampaignID: campaign.ID, RecipientID: &recipientID}
	if _, err := s.tasks.Schedule(ctx, model.TaskKindTestSend, payload, time.Now()); err != nil {
		return err
	}

	return s.campaigns.MarkTested(ctx, campaign.ID, testEmail, time.Now())
}
