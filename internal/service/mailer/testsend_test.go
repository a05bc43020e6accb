package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmo-mn/olympiad-api/internal/model"
)

func TestSendTestEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	html := `<p>Hello {{name}}</p>`
	campaign := env.campaigns.add(&model.Campaign{
		Subject:     "September Olympiad",
		Message:     "Hello {{name}}",
		HTMLMessage: &html,
		FromEmail:   "info@mmo.mn",
	})

	rec := &model.Recipient{
		CampaignID: campaign.ID,
		Email:      "preview@example.com",
		Name:       "Preview",
		IsTest:     true,
	}
	require.NoError(t, env.recipients.UpsertTest(ctx, rec))

	require.NoError(t, env.svc.SendTestEmail(ctx, campaign.ID, rec.ID))

	require.Len(t, env.sender.sent, 1)
	msg := env.sender.sent[0]
	assert.Equal(t, "[TEST] September Olympiad", msg.Subject)
	assert.Equal(t, "preview@example.com", msg.To)
	assert.True(t, strings.HasPrefix(msg.Body, "[TEST EMAIL]"))
	assert.Contains(t, msg.Body, "Hello Preview")
	assert.Contains(t, msg.HTMLBody, "TEST EMAIL")
	assert.Contains(t, msg.HTMLBody, "Hello Preview")

	stored, err := env.recipients.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecipientStatusSent, stored.Status)
	assert.NotNil(t, stored.MessageID)

	reloaded, err := env.campaigns.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.SentCount)
	assert.Equal(t, 0, reloaded.EmailsSentToday)
}

func TestSendTestEmailRejectsProductionRecipient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	campaign := env.campaigns.add(&model.Campaign{
		Subject:   "Subject",
		Message:   "Body",
		FromEmail: "info@mmo.mn",
	})
	inserted, err := env.recipients.BulkInsert(ctx, []*model.Recipient{{
		CampaignID: campaign.ID,
		Email:      "real@example.com",
		Name:       "Real",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	rec := env.recipients.find(campaign.ID, "real@example.com", false)
	require.NotNil(t, rec)

	err = env.svc.SendTestEmail(ctx, campaign.ID, rec.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a test recipient")
	assert.Empty(t, env.sender.sent)
}

func TestSendTestEmailSenderFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	campaign := env.campaigns.add(&model.Campaign{
		Subject:   "Subject",
		Message:   "Body",
		FromEmail: "info@mmo.mn",
	})
	rec := &model.Recipient{
		CampaignID: campaign.ID,
		Email:      "broken@example.com",
		IsTest:     true,
	}
	require.NoError(t, env.recipients.UpsertTest(ctx, rec))
	env.sender.failFor["broken@example.com"] = assert.AnError

	err := env.svc.SendTestEmail(ctx, campaign.ID, rec.ID)
	require.Error(t, err)

	stored, err := env.recipients.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecipientStatusFailed, stored.Status)
	assert.NotNil(t, stored.ErrorMessage)
}
