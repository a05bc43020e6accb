package mailer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// BuildFromFilters materializes the recipient list for a filter-mode
// campaign. Safe to re-run: duplicate rows are dropped by the
// uniqueness constraints, and the recorded total is the table count.
func (s *Service) BuildFromFilters(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	if err := s.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusQueued); err != nil {
		return err
	}

	if err := s.buildFromFilters(ctx, campaign); err != nil {
		s.failCampaign(ctx, campaignID, err)
		return fmt.Errorf("failed to build recipients for campaign %s: %w", campaignID, err)
	}
	return nil
}

func (s *Service) buildFromFilters(ctx context.Context, campaign *model.Campaign) error {
	users, err := s.users.FindForCampaign(ctx, campaign)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		s.logger.Warn("No users matched campaign filters", "campaign_id", campaign.ID.String())
		if err := s.campaigns.SetTotalRecipients(ctx, campaign.ID, 0); err != nil {
			return err
		}
		return s.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusDraft)
	}

	batch := make([]*model.Recipient, 0, s.cfg.InsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := s.recipients.BulkInsert(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, user := range users {
		userID := user.ID
		batch = append(batch, &model.Recipient{
			CampaignID: campaign.ID,
			Email:      strings.ToLower(user.Email),
			Name:       user.Name,
			UserID:     &userID,
		})
		if len(batch) >= s.cfg.InsertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	return s.finishBuild(ctx, campaign.ID)
}

// BuildFromList materializes recipients from a pasted block of text.
// Addresses are pattern-matched, lowercased and deduplicated; each is
// weakly linked to an account when one matches, with the address
// local part as the display-name fallback.
func (s *Service) BuildFromList(ctx context.Context, campaignID uuid.UUID, text string) error {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	if err := s.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusQueued); err != nil {
		return err
	}

	if err := s.buildFromList(ctx, campaign, text); err != nil {
		s.failCampaign(ctx, campaignID, err)
		return fmt.Errorf("failed to build recipients for campaign %s: %w", campaignID, err)
	}
	return nil
}

func (s *Service) buildFromList(ctx context.Context, campaign *model.Campaign, text string) error {
	emails := extractEmails(text)
	if len(emails) == 0 {
		s.logger.Warn("No valid addresses in pasted list", "campaign_id", campaign.ID.String())
		if err := s.campaigns.SetTotalRecipients(ctx, campaign.ID, 0); err != nil {
			return err
		}
		return s.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusDraft)
	}

	batch := make([]*model.Recipient, 0, s.cfg.InsertBatchSize)
	for _, addr := range emails {
		recipient := &model.Recipient{
			CampaignID: campaign.ID,
			Email:      addr,
			Name:       addr[:strings.Index(addr, "@")],
		}

		user, err := s.users.GetByEmail(ctx, addr)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if user != nil {
			userID := user.ID
			recipient.UserID = &userID
			if user.Name != "" {
				recipient.Name = user.Name
			}
		}

		batch = append(batch, recipient)
		if len(batch) >= s.cfg.InsertBatchSize {
			if _, err := s.recipients.BulkInsert(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := s.recipients.BulkInsert(ctx, batch); err != nil {
			return err
		}
	}

	return s.finishBuild(ctx, campaign.ID)
}

// finishBuild records the table count as the campaign total and
// returns the campaign to its ready state.
func (s *Service) finishBuild(ctx context.Context, campaignID uuid.UUID) error {
	total, err := s.recipients.CountByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := s.campaigns.SetTotalRecipients(ctx, campaignID, total); err != nil {
		return err
	}
	if err := s.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusDraft); err != nil {
		return err
	}

	s.logger.Info("Recipient list ready",
		"campaign_id", campaignID.String(),
		"total_recipients", total)
	return nil
}

func (s *Service) failCampaign(ctx context.Context, campaignID uuid.UUID, cause error) {
	s.logger.Error(cause, "Campaign moved to failed", "campaign_id", campaignID.String())
	if err := s.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusFailed); err != nil {
		s.logger.Error(err, "Failed to mark campaign failed", "campaign_id", campaignID.String())
	}
}

// extractEmails pulls RFC-shaped addresses out of free text,
// lowercased, deduplicated, first occurrence order preserved.
func extractEmails(text string) []string {
	matches := emailPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	emails := make([]string, 0, len(matches))
	for _, m := range matches {
		addr := strings.ToLower(strings.TrimSpace(m))
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		emails = append(emails, addr)
	}
	return emails
}
