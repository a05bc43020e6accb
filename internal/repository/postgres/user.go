package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

const userColumns = `
	id, email, name, password_hash, phone, status, level_id, school_id, province_id,
	last_login_at, login_attempts, last_login_attempt, preferred_language,
	email_verified, created_at, updated_at, deleted_at
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, name, password_hash, phone, status, level_id, school_id,
			province_id, preferred_language, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Phone,
		user.Status, user.LevelID, user.SchoolID, user.ProvinceID,
		user.PreferredLanguage, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s not found", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL LIMIT 1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET name = $1, phone = $2, status = $3, level_id = $4, school_id = $5,
			login_attempts = $6, last_login_attempt = $7, last_login_at = $8,
			updated_at = NOW()
		WHERE id = $9
	`
	_, err := r.db.ExecContext(ctx, query,
		user.Name, user.Phone, user.Status, user.LevelID, user.SchoolID,
		user.LoginAttempts, user.LastLoginAttempt, user.LastLoginAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// FindForCampaign resolves the filter-mode audience. The base
// population is active accounts with a present, non-empty email; the
// enabled predicates are OR-combined; the school restriction takes
// precedence over province. A restriction matching no account returns
// an empty set rather than widening to everyone.
func (r *userRepository) FindForCampaign(ctx context.Context, campaign *model.Campaign) ([]*model.User, error) {
	conditions := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	predicates := []string{}
	if campaign.FilterActiveYear {
		predicates = append(predicates, fmt.Sprintf("last_login_at >= %s", arg(time.Now().AddDate(-1, 0, 0))))
	}
	if campaign.FilterTeachers {
		predicates = append(predicates, fmt.Sprintf("level_id >= %s", arg(model.TeacherLevelMin)))
	}
	if campaign.FilterStudents {
		predicates = append(predicates, fmt.Sprintf("level_id < %s", arg(model.TeacherLevelMin)))
	}
	if campaign.FilterSchoolManagers {
		predicates = append(predicates, "id IN (SELECT manager_id FROM schools WHERE manager_id IS NOT NULL)")
	}
	if len(predicates) > 0 {
		conditions = append(conditions, "("+strings.Join(predicates, " OR ")+")")
	}

	if campaign.SchoolID != nil {
		conditions = append(conditions, fmt.Sprintf("school_id = %s", arg(*campaign.SchoolID)))
	} else if campaign.ProvinceID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"school_id IN (SELECT id FROM schools WHERE province_id = %s)", arg(*campaign.ProvinceID)))
	}

	query := `SELECT ` + userColumns + ` FROM users
		WHERE status = 'active' AND email IS NOT NULL AND email <> '' AND deleted_at IS NULL`
	for _, cond := range conditions {
		query += " AND " + cond
	}
	query += " ORDER BY created_at ASC"

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find campaign users: %w", err)
	}
	return users, nil
}

func (r *userRepository) FindIDsByEmail(ctx context.Context, email string) ([]uuid.UUID, error) {
	query := `SELECT id FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, email); err != nil {
		return nil, fmt.Errorf("failed to find users by email: %w", err)
	}
	return ids, nil
}
