package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type olympiadRepository struct {
	BaseRepository
}

func NewOlympiadRepository(base BaseRepository) repository.OlympiadRepository {
	return &olympiadRepository{base}
}

func (r *olympiadRepository) GetOlympiad(ctx context.Context, id uuid.UUID) (*model.Olympiad, error) {
	query := `
		SELECT id, name, round, school_year, problem_count, held_at, created_at, updated_at, deleted_at
		FROM olympiads WHERE id = $1 AND deleted_at IS NULL
	`
	var olympiad model.Olympiad
	if err := r.db.GetContext(ctx, &olympiad, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("olympiad %s not found", id)
		}
		return nil, fmt.Errorf("failed to get olympiad: %w", err)
	}
	return &olympiad, nil
}

func (r *olympiadRepository) SaveResult(ctx context.Context, result *model.OlympiadResult) error {
	query := `
		INSERT INTO olympiad_results (id, olympiad_id, user_id, scores, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (olympiad_id, user_id)
		DO UPDATE SET scores = EXCLUDED.scores, total = EXCLUDED.total, updated_at = NOW()
	`
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
		result.CreatedAt = time.Now()
	}

	scores := make(pq.Int64Array, len(result.Scores))
	for i, s := range result.Scores {
		scores[i] = int64(s)
	}

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.OlympiadID, result.UserID, scores, result.Total,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (r *olympiadRepository) ListResults(ctx context.Context, olympiadID uuid.UUID) ([]*model.OlympiadResult, error) {
	query := `
		SELECT id, olympiad_id, user_id, scores, total,
			RANK() OVER (ORDER BY total DESC) AS rank,
			created_at, updated_at, deleted_at
		FROM olympiad_results
		WHERE olympiad_id = $1
		ORDER BY total DESC
	`
	rows, err := r.db.QueryxContext(ctx, query, olympiadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*model.OlympiadResult
	for rows.Next() {
		var result model.OlympiadResult
		var scores pq.Int64Array
		if err := rows.Scan(
			&result.ID, &result.OlympiadID, &result.UserID, &scores, &result.Total,
			&result.Rank, &result.CreatedAt, &result.UpdatedAt, &result.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		result.Scores = make([]int, len(scores))
		for i, s := range scores {
			result.Scores[i] = int(s)
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}
