package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type schoolRepository struct {
	BaseRepository
}

func NewSchoolRepository(base BaseRepository) repository.SchoolRepository {
	return &schoolRepository{base}
}

func (r *schoolRepository) ListProvinces(ctx context.Context) ([]*model.Province, error) {
	query := `
		SELECT id, name, code, created_at, updated_at, deleted_at
		FROM provinces WHERE deleted_at IS NULL ORDER BY name ASC
	`
	var provinces []*model.Province
	if err := r.db.SelectContext(ctx, &provinces, query); err != nil {
		return nil, fmt.Errorf("failed to list provinces: %w", err)
	}
	return provinces, nil
}

func (r *schoolRepository) ListSchools(ctx context.Context, provinceID *uuid.UUID) ([]*model.School, error) {
	query := `
		SELECT id, name, province_id, manager_id, created_at, updated_at, deleted_at
		FROM schools WHERE deleted_at IS NULL
	`
	args := []interface{}{}
	if provinceID != nil {
		query += " AND province_id = $1"
		args = append(args, *provinceID)
	}
	query += " ORDER BY name ASC"

	var schools []*model.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	return schools, nil
}

func (r *schoolRepository) Get(ctx context.Context, id uuid.UUID) (*model.School, error) {
	query := `
		SELECT id, name, province_id, manager_id, created_at, updated_at, deleted_at
		FROM schools WHERE id = $1 AND deleted_at IS NULL
	`
	var school model.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("school %s not found", id)
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return &school, nil
}
