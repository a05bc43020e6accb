package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmo-mn/olympiad-api/internal/model"
)

func TestResolveUnsubscribeTokenForAccount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	user := env.users.add(&model.User{Email: "member@example.com", Name: "Member"})
	token := env.svc.signer.Sign(user.ID.String())

	resolved, email, err := env.svc.ResolveUnsubscribeToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "member@example.com", email)
}

func TestResolveUnsubscribeTokenForBareAddress(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Address token with no matching account still resolves so the
	// confirmation page can display it.
	token := env.svc.signer.Sign("stranger@example.com")

	resolved, email, err := env.svc.ResolveUnsubscribeToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, resolved)
	assert.Equal(t, "stranger@example.com", email)
}

func TestResolveUnsubscribeTokenTampered(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	token := env.svc.signer.Sign("member@example.com")

	_, _, err := env.svc.ResolveUnsubscribeToken(ctx, token+"x")
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestUnsubscribeRecordsOptOut(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	user := env.users.add(&model.User{Email: "member@example.com"})
	token := env.svc.signer.Sign(user.ID.String())

	email, err := env.svc.Unsubscribe(ctx, token, "too much mail")
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", email)

	unsub, err := env.suppressions.GetUnsubscribe(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, unsub.Reason)
	assert.Equal(t, "too much mail", *unsub.Reason)
}

func TestUnsubscribeWithoutAccount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	token := env.svc.signer.Sign("stranger@example.com")

	email, err := env.svc.Unsubscribe(ctx, token, "")
	assert.ErrorIs(t, err, ErrNoAccount)
	assert.Equal(t, "stranger@example.com", email)
	assert.Empty(t, env.suppressions.unsubscribes)
}
