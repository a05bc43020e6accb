package olympiad

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
)

// Service handles competition results and standings.
type Service interface {
	SubmitResult(ctx context.Context, olympiadID, userID uuid.UUID, scores []int) (*model.OlympiadResult, error)
	Standings(ctx context.Context, olympiadID uuid.UUID) ([]*model.OlympiadResult, error)
}

type service struct {
	olympiads repository.OlympiadRepository
	logger    *logger.Logger
}

func NewService(olympiads repository.OlympiadRepository, logger *logger.Logger) Service {
	return &service{olympiads: olympiads, logger: logger}
}

// SubmitResult totals per-problem scores and stores the row. The rank
// column is recomputed on read, not on write.
func (s *service) SubmitResult(ctx context.Context, olympiadID, userID uuid.UUID, scores []int) (*model.OlympiadResult, error) {
	olympiad, err := s.olympiads.GetOlympiad(ctx, olympiadID)
	if err != nil {
		return nil, err
	}
	if len(scores) != olympiad.ProblemCount {
		return nil, fmt.Errorf("expected %d scores, got %d", olympiad.ProblemCount, len(scores))
	}

	total := 0
	for _, score := range scores {
		if score < 0 {
			return nil, fmt.Errorf("negative score")
		}
		total += score
	}

	result := &model.OlympiadResult{
		OlympiadID: olympiadID,
		UserID:     userID,
		Scores:     scores,
		Total:      total,
	}
	if err := s.olympiads.SaveResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Standings(ctx context.Context, olympiadID uuid.UUID) ([]*model.OlympiadResult, error) {
	return s.olympiads.ListResults(ctx, olympiadID)
}
