package model

import (
	"time"

	"github.com/google/uuid"
)

// Olympiad is one scored competition round.
type Olympiad struct {
	Base
	Name         string    `json:"name" db:"name"`
	Round        int       `json:"round" db:"round"`
	SchoolYear   string    `json:"school_year" db:"school_year"`
	ProblemCount int       `json:"problem_count" db:"problem_count"`
	HeldAt       time.Time `json:"held_at" db:"held_at"`
}

// OlympiadResult is one contestant's scores for an olympiad. Scores is
// one entry per problem; Total is maintained by the scoring service.
type OlympiadResult struct {
	Base
	OlympiadID uuid.UUID `json:"olympiad_id" db:"olympiad_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Scores     []int     `json:"scores" db:"-"`
	Total      int       `json:"total" db:"total"`
	Rank       int       `json:"rank" db:"rank"`
}
