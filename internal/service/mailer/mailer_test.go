package mailer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"github.com/mmo-mn/olympiad-api/internal/config"
	"github.com/mmo-mn/olympiad-api/internal/email"
	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
	"github.com/mmo-mn/olympiad-api/pkg/metrics"
	"github.com/mmo-mn/olympiad-api/pkg/security"
)

// Shared registry-backed metrics: prometheus panics on duplicate
// registration, so every test service reuses one instance.
var testMetrics = metrics.NewMetrics("test", "mailer")

type fakeCampaignRepo struct {
	campaigns map[uuid.UUID]*model.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uuid.UUID]*model.Campaign)}
}

func (r *fakeCampaignRepo) add(c *model.Campaign) *model.Campaign {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	if c.DailyLimit == 0 {
		c.DailyLimit = model.DefaultDailyLimit
	}
	if c.LastResetDate.IsZero() {
		c.LastResetDate = time.Now()
	}
	r.campaigns[c.ID] = c
	return c
}

func (r *fakeCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	r.add(c)
	return nil
}

func (r *fakeCampaignRepo) Get(_ context.Context, id uuid.UUID) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCampaignRepo) GetForOperator(ctx context.Context, id, operatorID uuid.UUID) (*model.Campaign, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.CreatedBy != operatorID {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListByOperator(_ context.Context, operatorID uuid.UUID) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.CreatedBy == operatorID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) ListByStatus(_ context.Context, status string) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	return nil
}

func (r *fakeCampaignRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = model.CampaignStatusSent
	c.SentAt = &sentAt
	return nil
}

func (r *fakeCampaignRepo) SetTotalRecipients(_ context.Context, id uuid.UUID, total int) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.TotalRecipients = total
	return nil
}

func (r *fakeCampaignRepo) IncrementSent(_ context.Context, id uuid.UUID) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.SentCount++
	c.EmailsSentToday++
	return nil
}

func (r *fakeCampaignRepo) IncrementFailed(_ context.Context, id uuid.UUID) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.FailedCount++
	return nil
}

func (r *fakeCampaignRepo) ResetDailyWindow(_ context.Context, id uuid.UUID, today time.Time) (bool, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	y1, m1, d1 := c.LastResetDate.Date()
	y2, m2, d2 := today.Date()
	if time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC).Before(time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)) {
		c.EmailsSentToday = 0
		c.LastResetDate = today
		return true, nil
	}
	return false, nil
}

func (r *fakeCampaignRepo) MarkTested(_ context.Context, id uuid.UUID, email string, at time.Time) error {
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.IsTested = true
	c.TestRecipientEmail = &email
	c.TestSentAt = &at
	return nil
}

type fakeRecipientRepo struct {
	recipients []*model.Recipient
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{}
}

func (r *fakeRecipientRepo) find(campaignID uuid.UUID, email string, isTest bool) *model.Recipient {
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID && rec.Email == email && rec.IsTest == isTest {
			return rec
		}
	}
	return nil
}

func (r *fakeRecipientRepo) BulkInsert(_ context.Context, batch []*model.Recipient) (int, error) {
	inserted := 0
	for _, rec := range batch {
		if r.find(rec.CampaignID, rec.Email, false) != nil {
			continue
		}
		rec.ID = uuid.New()
		rec.Status = model.RecipientStatusPending
		rec.CreatedAt = time.Now()
		r.recipients = append(r.recipients, rec)
		inserted++
	}
	return inserted, nil
}

func (r *fakeRecipientRepo) UpsertTest(_ context.Context, rec *model.Recipient) error {
	if existing := r.find(rec.CampaignID, rec.Email, true); existing != nil {
		existing.Status = model.RecipientStatusPending
		existing.Name = rec.Name
		existing.UserID = rec.UserID
		rec.ID = existing.ID
		return nil
	}
	rec.ID = uuid.New()
	rec.IsTest = true
	rec.Status = model.RecipientStatusPending
	r.recipients = append(r.recipients, rec)
	return nil
}

func (r *fakeRecipientRepo) Get(_ context.Context, id uuid.UUID) (*model.Recipient, error) {
	for _, rec := range r.recipients {
		if rec.ID == id {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeRecipientRepo) ListPendingIDs(_ context.Context, campaignID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, rec := range r.recipients {
		if len(ids) >= limit {
			break
		}
		if rec.CampaignID == campaignID && rec.Status == model.RecipientStatusPending && !rec.IsTest {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

func (r *fakeRecipientRepo) ListPendingByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Recipient, error) {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*model.Recipient
	for _, rec := range r.recipients {
		if _, ok := want[rec.ID]; ok && rec.Status == model.RecipientStatusPending {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRecipientRepo) CountPending(_ context.Context, campaignID uuid.UUID) (int, error) {
	count := 0
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID && rec.Status == model.RecipientStatusPending && !rec.IsTest {
			count++
		}
	}
	return count, nil
}

func (r *fakeRecipientRepo) CountByCampaign(_ context.Context, campaignID uuid.UUID) (int, error) {
	count := 0
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID && !rec.IsTest {
			count++
		}
	}
	return count, nil
}

func (r *fakeRecipientRepo) MarkSent(_ context.Context, id uuid.UUID, messageID *string, at time.Time) error {
	for _, rec := range r.recipients {
		if rec.ID == id {
			rec.Status = model.RecipientStatusSent
			rec.MessageID = messageID
			rec.SentAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeRecipientRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	for _, rec := range r.recipients {
		if rec.ID == id {
			rec.Status = model.RecipientStatusFailed
			rec.ErrorMessage = &reason
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeRecipientRepo) MarkBouncedByEmail(_ context.Context, email string, onlySent bool, reason string) (int64, error) {
	var n int64
	for _, rec := range r.recipients {
		if rec.Email != email {
			continue
		}
		if onlySent && rec.Status != model.RecipientStatusSent {
			continue
		}
		rec.Status = model.RecipientStatusBounced
		rec.ErrorMessage = &reason
		n++
	}
	return n, nil
}

type fakeSuppressionRepo struct {
	bounces      []*model.Bounce
	unsubscribes map[uuid.UUID]*model.Unsubscribe
}

func newFakeSuppressionRepo() *fakeSuppressionRepo {
	return &fakeSuppressionRepo{unsubscribes: make(map[uuid.UUID]*model.Unsubscribe)}
}

func (r *fakeSuppressionRepo) InsertBounce(_ context.Context, b *model.Bounce) error {
	b.ID = uuid.New()
	r.bounces = append(r.bounces, b)
	return nil
}

func (r *fakeSuppressionRepo) UpsertUnsubscribe(_ context.Context, u *model.Unsubscribe) error {
	if _, ok := r.unsubscribes[u.UserID]; !ok {
		u.UnsubscribedAt = time.Now()
		r.unsubscribes[u.UserID] = u
	}
	return nil
}

func (r *fakeSuppressionRepo) GetUnsubscribedUserIDs(_ context.Context) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(r.unsubscribes))
	for id := range r.unsubscribes {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *fakeSuppressionRepo) GetBlockedEmails(_ context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, b := range r.bounces {
		if b.Blocks() {
			out[strings.ToLower(b.Email)] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeSuppressionRepo) GetUnsubscribe(_ context.Context, userID uuid.UUID) (*model.Unsubscribe, error) {
	u, ok := r.unsubscribes[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type fakeUserRepo struct {
	users         map[uuid.UUID]*model.User
	campaignMatch []*model.User
	campaignErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) add(u *model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.add(u)
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return sql.ErrNoRows
	}
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) FindForCampaign(_ context.Context, _ *model.Campaign) ([]*model.User, error) {
	return r.campaignMatch, r.campaignErr
}

func (r *fakeUserRepo) FindIDsByEmail(_ context.Context, email string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

type fakeTaskRepo struct {
	tasks []*model.ScheduledTask
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{}
}

func (r *fakeTaskRepo) Schedule(_ context.Context, kind string, payload interface{}, runAt time.Time) (*model.ScheduledTask, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	task := &model.ScheduledTask{
		ID:      uuid.New(),
		Kind:    kind,
		Payload: types.JSONText(body),
		Status:  model.TaskStatusPending,
		RunAt:   runAt,
	}
	r.tasks = append(r.tasks, task)
	return task, nil
}

func (r *fakeTaskRepo) ClaimDue(_ context.Context, limit int) ([]*model.ScheduledTask, error) {
	now := time.Now()
	var out []*model.ScheduledTask
	for _, t := range r.tasks {
		if len(out) >= limit {
			break
		}
		if t.Status == model.TaskStatusPending && !t.RunAt.After(now) {
			t.Status = model.TaskStatusProcessing
			t.Attempts++
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) MarkDone(_ context.Context, id uuid.UUID) error {
	for _, t := range r.tasks {
		if t.ID == id {
			t.Status = model.TaskStatusDone
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeTaskRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	for _, t := range r.tasks {
		if t.ID == id {
			t.ErrorMessage = &errMsg
			if retryAt != nil {
				t.Status = model.TaskStatusPending
				t.RunAt = *retryAt
			} else {
				t.Status = model.TaskStatusFailed
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeTaskRepo) byKind(kind string) []*model.ScheduledTask {
	var out []*model.ScheduledTask
	for _, t := range r.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

type fakeSender struct {
	sent    []*email.Message
	failFor map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (s *fakeSender) Send(_ context.Context, msg *email.Message) (string, error) {
	if err, ok := s.failFor[msg.To]; ok {
		return "", err
	}
	s.sent = append(s.sent, msg)
	return fmt.Sprintf("<%s@test>", uuid.New()), nil
}

type fakeBroker struct {
	published []string
}

func (b *fakeBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	b.published = append(b.published, channel)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

type testEnv struct {
	svc          *Service
	campaigns    *fakeCampaignRepo
	recipients   *fakeRecipientRepo
	suppressions *fakeSuppressionRepo
	users        *fakeUserRepo
	tasks        *fakeTaskRepo
	sender       *fakeSender
	broker       *fakeBroker
}

func newTestEnv() *testEnv {
	env := &testEnv{
		campaigns:    newFakeCampaignRepo(),
		recipients:   newFakeRecipientRepo(),
		suppressions: newFakeSuppressionRepo(),
		users:        newFakeUserRepo(),
		tasks:        newFakeTaskRepo(),
		sender:       newFakeSender(),
		broker:       &fakeBroker{},
	}

	env.svc = NewService(
		env.campaigns,
		env.recipients,
		env.suppressions,
		env.users,
		env.tasks,
		env.sender,
		security.NewSigner("test-secret"),
		env.broker,
		testMetrics,
		logger.NewLogger(nil),
		config.MailerConfig{
			SiteURL:         "https://mmo.mn",
			TokenSecret:     "test-secret",
			BatchSize:       2,
			BatchDelay:      5 * time.Second,
			CompletionDelay: 60 * time.Second,
			InsertBatchSize: 1000,
		},
	)
	return env
}
