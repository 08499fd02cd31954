package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/pagination"
	"github.com/sakif/blog-platform/internal/repository"
)

// RelationService exposes one user→post relation. Likes and bookmarks
// behave identically, so the server builds two instances of this type over
// different stores.
type RelationService struct {
	kind      string // "like" or "bookmark", used in logs
	relations repository.RelationRepository
	posts     repository.PostRepository
	logger    *slog.Logger
}

func NewRelationService(kind string, relations repository.RelationRepository, posts repository.PostRepository, logger *slog.Logger) *RelationService {
	return &RelationService{
		kind:      kind,
		relations: relations,
		posts:     posts,
		logger:    logger,
	}
}

// Toggle flips the caller's membership on the post and returns the new
// state. Posts the caller cannot see are reported as NotFound.
func (s *RelationService) Toggle(ctx context.Context, actor *model.Principal, postID int64) (bool, error) {
	if err := requireActor(actor); err != nil {
		return false, err
	}
	if err := s.checkVisible(ctx, actor, postID); err != nil {
		return false, err
	}

	on, err := s.relations.Toggle(ctx, postID, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("toggling %s: %w", s.kind, err)
	}

	s.logger.Info(s.kind+" toggled",
		slog.Int64("post", postID),
		slog.String("user", actor.UserID),
		slog.Bool("state", on),
	)
	return on, nil
}

// List pages the caller's entries, newest first, each with its post.
func (s *RelationService) List(ctx context.Context, actor *model.Principal, limit int, cursor *int64) (*pagination.Page[model.RelationEntry], error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	limit = pagination.Clamp(limit, DefaultRelationLimit)
	rows, err := s.relations.ListByUser(ctx, actor.UserID, cursor, pagination.Fetch(limit))
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", s.kind, err)
	}
	page := pagination.Trim(rows, limit, entryKey)

	posts := make([]model.Post, len(page.Items))
	for i, e := range page.Items {
		posts[i] = *e.Post
	}
	if err := attachCategories(ctx, s.posts, posts); err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	for i := range page.Items {
		page.Items[i].Post = &posts[i]
	}
	return &page, nil
}

// Count returns how many users hold the relation on the post.
func (s *RelationService) Count(ctx context.Context, actor *model.Principal, postID int64) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	n, err := s.relations.Count(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("counting %ss: %w", s.kind, err)
	}
	return n, nil
}

// IsMember reports whether the caller holds the relation on the post.
func (s *RelationService) IsMember(ctx context.Context, actor *model.Principal, postID int64) (bool, error) {
	if err := requireActor(actor); err != nil {
		return false, err
	}
	ok, err := s.relations.Exists(ctx, postID, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", s.kind, err)
	}
	return ok, nil
}

func (s *RelationService) checkVisible(ctx context.Context, actor *model.Principal, postID int64) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if !post.VisibleTo(actor) {
		return apperror.NotFound("post", strconv.FormatInt(postID, 10))
	}
	return nil
}
