package mailer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/pkg/security"
)

// ErrNoAccount is returned when an unsubscribe token resolves to an
// address with no registered account to suppress.
var ErrNoAccount = errors.New("no account for address")

// ErrBadToken is returned for tampered or malformed unsubscribe
// tokens. Callers must not disclose why verification failed.
var ErrBadToken = errors.New("invalid unsubscribe token")

// ResolveUnsubscribeToken verifies a signed token and resolves the
// account and address it was issued for. The token value is either an
// account id or a raw email address.
func (s *Service) ResolveUnsubscribeToken(ctx context.Context, token string) (*model.User, string, error) {
	value, err := s.signer.Unsign(token)
	if err != nil {
		if errors.Is(err, security.ErrBadSignature) {
			return nil, "", ErrBadToken
		}
		return nil, "", err
	}

	if userID, err := uuid.Parse(value); err == nil {
		user, err := s.users.Get(ctx, userID)
		if err != nil {
			return nil, "", ErrBadToken
		}
		return user, user.Email, nil
	}

	user, err := s.users.GetByEmail(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, value, nil
		}
		return nil, "", err
	}
	return user, value, nil
}

// Unsubscribe records a permanent opt-out for the account the token
// resolves to.
func (s *Service) Unsubscribe(ctx context.Context, token, reason string) (string, error) {
	user, email, err := s.ResolveUnsubscribeToken(ctx, token)
	if err != nil {
		return "", err
	}
	if user == nil {
		return email, fmt.Errorf("%w: %s", ErrNoAccount, email)
	}

	unsub := &model.Unsubscribe{
		UserID: user.ID,
		Email:  user.Email,
	}
	if reason != "" {
		unsub.Reason = &reason
	}
	if err := s.suppressions.UpsertUnsubscribe(ctx, unsub); err != nil {
		return "", err
	}

	s.cache.Delete(cacheKeyUnsubscribed)
	s.logger.Info("Unsubscribed", "email", user.Email)
	return user.Email, nil
}
