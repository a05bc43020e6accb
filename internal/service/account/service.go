package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
	"github.com/mmo-mn/olympiad-api/pkg/auth"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
	"github.com/mmo-mn/olympiad-api/pkg/security"
)

const (
	maxLoginAttempts = 5
	lockoutWindow    = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrEmailTaken         = errors.New("email already registered")
)

// Service handles registration and authentication.
type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
	Get(ctx context.Context, email string) (*model.User, error)
}

type service struct {
	users      repository.UserRepository
	schools    repository.SchoolRepository
	hasher     security.PasswordHasher
	jwtService auth.JWTService
	tokenTTL   time.Duration
	logger     *logger.Logger
}

func NewService(
	users repository.UserRepository,
	schools repository.SchoolRepository,
	hasher security.PasswordHasher,
	jwtService auth.JWTService,
	tokenTTL time.Duration,
	logger *logger.Logger,
) Service {
	return &service{
		users:      users,
		schools:    schools,
		hasher:     hasher,
		jwtService: jwtService,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

func (s *service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Status:       model.UserStatusActive,
		LevelID:      req.LevelID,
		SchoolID:     req.SchoolID,
	}
	if req.SchoolID != nil {
		school, err := s.schools.Get(ctx, *req.SchoolID)
		if err != nil {
			return nil, err
		}
		provinceID := school.ProvinceID
		user.ProvinceID = &provinceID
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Account registered", "user_id", user.ID.String())
	return user, nil
}

func (s *service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if now.Sub(user.LastLoginAttempt) > lockoutWindow {
		user.LoginAttempts = 0
	}
	if user.LoginAttempts >= maxLoginAttempts {
		return nil, ErrAccountLocked
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		user.LoginAttempts++
		user.LastLoginAttempt = now
		if updateErr := s.users.Update(ctx, user); updateErr != nil {
			s.logger.Error(updateErr, "Failed to record login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	user.LoginAttempts = 0
	user.LastLoginAttempt = now
	lastLogin := now
	user.LastLoginAt = &lastLogin
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Error(err, "Failed to record login")
	}

	return s.issueTokens(user)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

func (s *service) Get(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *service) issueTokens(user *model.User) (*model.TokenResponse, error) {
	access, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokenTTL.Seconds()),
	}, nil
}
