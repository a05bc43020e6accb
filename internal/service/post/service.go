package post

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/repository"
	"github.com/mmo-mn/olympiad-api/pkg/logger"
)

// Service handles published content.
type Service interface {
	Create(ctx context.Context, authorID uuid.UUID, req *model.CreatePostRequest) (*model.Post, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Post, error)
	ListPublished(ctx context.Context, p model.Pagination) ([]*model.Post, error)
	Publish(ctx context.Context, id uuid.UUID) error
}

type service struct {
	posts  repository.PostRepository
	logger *logger.Logger
}

func NewService(posts repository.PostRepository, logger *logger.Logger) Service {
	return &service{posts: posts, logger: logger}
}

func (s *service) Create(ctx context.Context, authorID uuid.UUID, req *model.CreatePostRequest) (*model.Post, error) {
	post := &model.Post{
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: authorID,
	}
	if req.Publish {
		now := time.Now()
		post.Published = true
		post.PublishedAt = &now
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	return s.posts.Get(ctx, id)
}

func (s *service) ListPublished(ctx context.Context, p model.Pagination) ([]*model.Post, error) {
	return s.posts.ListPublished(ctx, p)
}

func (s *service) Publish(ctx context.Context, id uuid.UUID) error {
	return s.posts.Publish(ctx, id, time.Now())
}
