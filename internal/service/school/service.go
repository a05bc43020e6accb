package school

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

// Service exposes the province/school hierarchy for registration and
// campaign targeting.
type Service interface {
	ListProvinces(ctx context.Context) ([]*model.Province, error)
	ListSchools(ctx context.Context, provinceID *uuid.UUID) ([]*model.School, error)
	Get(ctx context.Context, id uuid.UUID) (*model.School, error)
}

type service struct {
	schools repository.SchoolRepository
}

func NewService(schools repository.SchoolRepository) Service {
	return &service{schools: schools}
}

func (s *service) ListProvinces(ctx context.Context) ([]*model.Province, error) {
	return s.schools.ListProvinces(ctx)
}

func (s *service) ListSchools(ctx context.Context, provinceID *uuid.UUID) ([]*model.School, error) {
	return s.schools.ListSchools(ctx, provinceID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.School, error) {
	return s.schools.Get(ctx, id)
}
