package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
)

type stubCampaignRepo struct {
	campaigns map[uuid.UUID]*model.Campaign
}

func newStubCampaignRepo() *stubCampaignRepo {
	return &stubCampaignRepo{campaigns: make(map[uuid.UUID]*model.Campaign)}
}

func (r *stubCampaignRepo) add(c *model.Campaign) *model.Campaign {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	r.campaigns[c.ID] = c
	return c
}

func (r *stubCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	r.add(c)
	return nil
}

func (r *stubCampaignRepo) Get(_ context.Context, id uuid.UUID) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (r *stubCampaignRepo) GetForOperator(_ context.Context, id, operatorID uuid.UUID) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok || c.CreatedBy != operatorID {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (r *stubCampaignRepo) ListByOperator(_ context.Context, operatorID uuid.UUID) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.CreatedBy == operatorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCampaignRepo) ListByStatus(_ context.Context, status string) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCampaignRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	return nil
}

func (r *stubCampaignRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = model.CampaignStatusSent
	c.SentAt = &sentAt
	return nil
}

func (r *stubCampaignRepo) SetTotalRecipients(_ context.Context, id uuid.UUID, total int) error {
	r.campaigns[id].TotalRecipients = total
	return nil
}

func (r *stubCampaignRepo) IncrementSent(_ context.Context, id uuid.UUID) error {
	r.campaigns[id].SentCount++
	return nil
}

func (r *stubCampaignRepo) IncrementFailed(_ context.Context, id uuid.UUID) error {
	r.campaigns[id].FailedCount++
	return nil
}

func (r *stubCampaignRepo) ResetDailyWindow(_ context.Context, id uuid.UUID, today time.Time) (bool, error) {
	return false, nil
}

func (r *stubCampaignRepo) MarkTested(_ context.Context, id uuid.UUID, email string, at time.Time) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.IsTested = true
	c.TestSentAt = &at
	c.TestRecipientEmail = &email
	return nil
}

type stubRecipientRepo struct {
	pending  int
	testRows []*model.Recipient
}

func (r *stubRecipientRepo) BulkInsert(context.Context, []*model.Recipient) (int, error) {
	return 0, nil
}

func (r *stubRecipientRepo) UpsertTest(_ context.Context, rec *model.Recipient) error {
	rec.ID = uuid.New()
	rec.IsTest = true
	rec.Status = model.RecipientStatusPending
	r.testRows = append(r.testRows, rec)
	return nil
}

func (r *stubRecipientRepo) Get(context.Context, uuid.UUID) (*model.Recipient, error) {
	return nil, sql.ErrNoRows
}

func (r *stubRecipientRepo) ListPendingIDs(context.Context, uuid.UUID, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *stubRecipientRepo) ListPendingByIDs(context.Context, []uuid.UUID) ([]*model.Recipient, error) {
	return nil, nil
}

func (r *stubRecipientRepo) CountPending(context.Context, uuid.UUID) (int, error) {
	return r.pending, nil
}

func (r *stubRecipientRepo) CountByCampaign(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func (r *stubRecipientRepo) MarkSent(context.Context, uuid.UUID, *string, time.Time) error {
	return nil
}

func (r *stubRecipientRepo) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

func (r *stubRecipientRepo) MarkBouncedByEmail(context.Context, string, bool, string) (int64, error) {
	return 0, nil
}

type stubUserRepo struct {
	byEmail map[string]*model.User
}

func (r *stubUserRepo) Create(context.Context, *model.User) error { return nil }

func (r *stubUserRepo) Get(context.Context, uuid.UUID) (*model.User, error) {
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := r.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) Update(context.Context, *model.User) error { return nil }

func (r *stubUserRepo) FindForCampaign(context.Context, *model.Campaign) ([]*model.User, error) {
	return nil, nil
}

func (r *stubUserRepo) FindIDsByEmail(context.Context, string) ([]uuid.UUID, error) {
	return nil, nil
}

type stubTaskRepo struct {
	scheduled []*model.ScheduledTask
}

func (r *stubTaskRepo) Schedule(_ context.Context, kind string, payload interface{}, runAt time.Time) (*model.ScheduledTask, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	task := &model.ScheduledTask{
		ID:      uuid.New(),
		Kind:    kind,
		Payload: types.JSONText(raw),
		Status:  model.TaskStatusPending,
		RunAt:   runAt,
	}
	r.scheduled = append(r.scheduled, task)
	return task, nil
}

func (r *stubTaskRepo) ClaimDue(context.Context, int) ([]*model.ScheduledTask, error) {
	return nil, nil
}

func (r *stubTaskRepo) MarkDone(context.Context, uuid.UUID) error { return nil }

func (r *stubTaskRepo) MarkFailed(context.Context, uuid.UUID, string, *time.Time) error { return nil }

func (r *stubTaskRepo) byKind(kind string) []*model.ScheduledTask {
	var out []*model.ScheduledTask
	for _, t := range r.scheduled {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

type fixture struct {
	svc        Service
	campaigns  *stubCampaignRepo
	recipients *stubRecipientRepo
	users      *stubUserRepo
	tasks      *stubTaskRepo
	operatorID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		campaigns:  newStubCampaignRepo(),
		recipients: &stubRecipientRepo{},
		users:      &stubUserRepo{byEmail: make(map[string]*model.User)},
		tasks:      &stubTaskRepo{},
		operatorID: uuid.New(),
	}
	f.svc = NewService(f.campaigns, f.recipients, f.users, f.tasks, logger.NewLogger(nil))
	return f
}

func validRequest() *model.CreateCampaignRequest {
	return &model.CreateCampaignRequest{
		Name:    "Autumn registration",
		Subject: "Registration is open",
		Message: "Hi {{name}}, registration for the autumn round is open.",
	}
}

func TestCreateWithFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := validRequest()
	req.FilterStudents = true
	req.FilterActiveYear = true

	campaign, err := f.svc.Create(ctx, f.operatorID, req)
	require.NoError(t, err)

	assert.Equal(t, model.CampaignStatusDraft, campaign.Status)
	assert.Equal(t, model.DefaultDailyLimit, campaign.DailyLimit)
	assert.Equal(t, model.FromEmailChoices[0], campaign.FromEmail)
	assert.Equal(t, f.operatorID, campaign.CreatedBy)

	builds := f.tasks.byKind(model.TaskKindBuildFilters)
	require.Len(t, builds, 1)
	assert.Empty(t, f.tasks.byKind(model.TaskKindBuildList))
}

func TestCreateWithCustomList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := validRequest()
	req.UseCustomList = true
	req.EmailList = "a@example.com, b@example.com"

	campaign, err := f.svc.Create(ctx, f.operatorID, req)
	require.NoError(t, err)
	assert.True(t, campaign.UseCustomList)

	builds := f.tasks.byKind(model.TaskKindBuildList)
	require.Len(t, builds, 1)

	var payload model.CampaignTaskPayload
	require.NoError(t, json.Unmarshal(builds[0].Payload, &payload))
	assert.Equal(t, campaign.ID, payload.CampaignID)
	assert.Equal(t, req.EmailList, payload.EmailList)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.CreateCampaignRequest)
	}{
		{
			name: "custom list without addresses",
			mutate: func(req *model.CreateCampaignRequest) {
				req.UseCustomList = true
			},
		},
		{
			name: "custom list combined with filters",
			mutate: func(req *model.CreateCampaignRequest) {
				req.UseCustomList = true
				req.EmailList = "a@example.com"
				req.FilterTeachers = true
			},
		},
		{
			name: "email list without custom list mode",
			mutate: func(req *model.CreateCampaignRequest) {
				req.EmailList = "a@example.com"
			},
		},
		{
			name: "sender address outside the allowed set",
			mutate: func(req *model.CreateCampaignRequest) {
				req.FromEmail = "spoof@example.com"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			_, err := f.svc.Create(ctx, f.operatorID, req)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, f.tasks.scheduled)
}

func TestSendSchedulesDispatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID})

	require.NoError(t, f.svc.Send(ctx, campaign.ID, f.operatorID))

	dispatches := f.tasks.byKind(model.TaskKindDispatch)
	require.Len(t, dispatches, 1)
	assert.WithinDuration(t, time.Now(), dispatches[0].RunAt, time.Second)
}

func TestSendRejectsActiveCampaign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, status := range []string{model.CampaignStatusSending, model.CampaignStatusSent} {
		campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID, Status: status})
		err := f.svc.Send(ctx, campaign.ID, f.operatorID)
		assert.Error(t, err, "status %s", status)
	}
	assert.Empty(t, f.tasks.scheduled)
}

func TestSendUnknownOperator(t *testing.T) {
	f := newFixture()
	campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID})

	err := f.svc.Send(context.Background(), campaign.ID, uuid.New())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	campaign := f.campaigns.add(&model.Campaign{
		CreatedBy: f.operatorID,
		Status:    model.CampaignStatusSending,
	})

	require.NoError(t, f.svc.Pause(ctx, campaign.ID, f.operatorID))
	assert.Equal(t, model.CampaignStatusPaused, campaign.Status)

	require.NoError(t, f.svc.Resume(ctx, campaign.ID, f.operatorID))
	require.Len(t, f.tasks.byKind(model.TaskKindDispatch), 1)
}

func TestPauseRejectsNonSending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, status := range []string{model.CampaignStatusDraft, model.CampaignStatusPaused, model.CampaignStatusSent} {
		campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID, Status: status})
		assert.Error(t, f.svc.Pause(ctx, campaign.ID, f.operatorID), "status %s", status)
	}
}

func TestResumeRejectsNonPaused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	campaign := f.campaigns.add(&model.Campaign{
		CreatedBy: f.operatorID,
		Status:    model.CampaignStatusSending,
	})
	assert.Error(t, f.svc.Resume(ctx, campaign.ID, f.operatorID))
	assert.Empty(t, f.tasks.scheduled)
}

func TestStatsProgressRounding(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	campaign := f.campaigns.add(&model.Campaign{
		CreatedBy:       f.operatorID,
		Status:          model.CampaignStatusSending,
		TotalRecipients: 3,
		SentCount:       1,
	})
	f.recipients.pending = 2

	stats, err := f.svc.Stats(ctx, campaign.ID, f.operatorID)
	require.NoError(t, err)

	assert.Equal(t, "Sending", stats.Status)
	assert.Equal(t, 1, stats.SentCount)
	assert.Equal(t, 2, stats.PendingCount)
	assert.InDelta(t, 33.3, stats.ProgressPercent, 0.001)
}

func TestStatsEmptyCampaign(t *testing.T) {
	f := newFixture()

	campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID})

	stats, err := f.svc.Stats(context.Background(), campaign.ID, f.operatorID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.ProgressPercent)
	assert.Equal(t, "Draft", stats.Status)
}

func TestQueueTestEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID})
	user := &model.User{Base: model.Base{ID: uuid.New()}, Email: "known@example.com"}
	f.users.byEmail["known@example.com"] = user

	require.NoError(t, f.svc.QueueTestEmail(ctx, campaign.ID, f.operatorID, "known@example.com"))

	require.Len(t, f.recipients.testRows, 1)
	rec := f.recipients.testRows[0]
	assert.True(t, rec.IsTest)
	assert.Equal(t, "Test User", rec.Name)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, user.ID, *rec.UserID)

	sends := f.tasks.byKind(model.TaskKindTestSend)
	require.Len(t, sends, 1)
	var payload model.CampaignTaskPayload
	require.NoError(t, json.Unmarshal(sends[0].Payload, &payload))
	require.NotNil(t, payload.RecipientID)
	assert.Equal(t, rec.ID, *payload.RecipientID)

	assert.True(t, campaign.IsTested)
	require.NotNil(t, campaign.TestRecipientEmail)
	assert.Equal(t, "known@example.com", *campaign.TestRecipientEmail)
}

func TestQueueTestEmailUnknownAddress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	campaign := f.campaigns.add(&model.Campaign{CreatedBy: f.operatorID})

	require.NoError(t, f.svc.QueueTestEmail(ctx, campaign.ID, f.operatorID, "stranger@example.com"))

	require.Len(t, f.recipients.testRows, 1)
	assert.Nil(t, f.recipients.testRows[0].UserID)
}
