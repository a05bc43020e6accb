package model

import (
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
	UserStatusLocked   = "locked"
)

// Level bounds: levels below TeacherLevelMin are student grades,
// TeacherLevelMin and above are teacher categories.
const (
	TeacherLevelMin = 6
	TeacherLevelMax = 7
)

// User represents a registered account: a student, a teacher or a
// school manager (managers are derived from schools.manager_id).
type User struct {
	Base
	Email             string     `json:"email" db:"email"`
	Name              string     `json:"name" db:"name"`
	Password          string     `json:"password,omitempty" db:"-"`
	PasswordHash      string     `json:"-" db:"password_hash"`
	Phone             *string    `json:"phone" db:"phone"`
	Status            string     `json:"status" db:"status"`
	LevelID           *int       `json:"level_id" db:"level_id"`
	SchoolID          *uuid.UUID `json:"school_id" db:"school_id"`
	ProvinceID        *uuid.UUID `json:"province_id" db:"province_id"`
	LastLoginAt       *time.Time `json:"last_login_at" db:"last_login_at"`
	LoginAttempts     int        `json:"-" db:"login_attempts"`
	LastLoginAttempt  time.Time  `json:"-" db:"last_login_attempt"`
	PreferredLanguage string     `json:"preferred_language" db:"preferred_language"`
	EmailVerified     bool       `json:"email_verified" db:"email_verified"`
	Settings          JSONMap    `json:"settings,omitempty" db:"-"`
}

// IsTeacher reports whether the account's level marks it as a teacher.
func (u *User) IsTeacher() bool {
	return u.LevelID != nil && *u.LevelID >= TeacherLevelMin
}

// RegisterRequest represents account registration parameters
type RegisterRequest struct {
	Email    string     `json:"email" binding:"required,email"`
	Name     string     `json:"name" binding:"required"`
	Password string     `json:"password" binding:"required,min=8"`
	LevelID  *int       `json:"level_id"`
	SchoolID *uuid.UUID `json:"school_id"`
}

// LoginRequest represents login parameters
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries issued tokens back to the client
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenClaims are the validated contents of an access token
type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}
