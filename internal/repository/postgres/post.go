package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
)

type postRepository struct {
	BaseRepository
}

func NewPostRepository(base BaseRepository) repository.PostRepository {
	return &postRepository{base}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	query := `
		INSERT INTO posts (id, title, body, author_id, published, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	post.ID = uuid.New()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Body, post.AuthorID,
		post.Published, post.PublishedAt, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *postRepository) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	query := `
		SELECT id, title, body, author_id, published, published_at, created_at, updated_at, deleted_at
		FROM posts WHERE id = $1 AND deleted_at IS NULL
	`
	var post model.Post
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("post %s not found", id)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) ListPublished(ctx context.Context, p model.Pagination) ([]*model.Post, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.Page <= 0 {
		p.Page = 1
	}

	query := `
		SELECT id, title, body, author_id, published, published_at, created_at, updated_at, deleted_at
		FROM posts WHERE published AND deleted_at IS NULL
		ORDER BY published_at DESC
		LIMIT $1 OFFSET $2
	`
	var posts []*model.Post
	if err := r.db.SelectContext(ctx, &posts, query, p.PageSize, (p.Page-1)*p.PageSize); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) Publish(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE posts SET published = TRUE, published_at = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}
	return nil
}
