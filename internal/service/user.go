package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/pagination"
	"github.com/sakif/blog-platform/internal/repository"
)

// UserService serves public author pages: profile, archive and stats.
type UserService struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, posts repository.PostRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, posts: posts, logger: logger}
}

// GetByID returns only the public part of the user.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.PublicProfile, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

// GetPosts pages the author's published posts, most recently published first.
func (s *UserService) GetPosts(ctx context.Context, id string, limit int, cursor *int64) (*pagination.Page[model.Post], error) {
	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	limit = pagination.Clamp(limit, DefaultPostLimit)
	rows, err := s.posts.ListPublished(ctx, repository.PublishedFilter{
		AuthorID: id,
		Cursor:   cursor,
		Limit:    pagination.Fetch(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing posts of %s: %w", id, err)
	}

	page := pagination.Trim(rows, limit, postKey)
	if err := attachCategories(ctx, s.posts, page.Items); err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	return &page, nil
}

// GetStats counts the author's published posts and the likes and bookmarks
// those posts have received.
func (s *UserService) GetStats(ctx context.Context, id string) (*model.UserStats, error) {
	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	stats, err := s.posts.StatsForAuthor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("computing stats of %s: %w", id, err)
	}
	return stats, nil
}
