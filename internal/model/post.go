package model

import (
	"time"

	"github.com/google/uuid"
)

// Post is one published article or announcement.
type Post struct {
	Base
	Title       string     `json:"title" db:"title"`
	Body        string     `json:"body" db:"body"`
	AuthorID    uuid.UUID  `json:"author_id" db:"author_id"`
	Published   bool       `json:"published" db:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
}

// CreatePostRequest represents post creation parameters
type CreatePostRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Body    string `json:"body" binding:"required"`
	Publish bool   `json:"publish"`
}
