package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/pagination"
	"github.com/sakif/blog-platform/internal/repository"
	"github.com/sakif/blog-platform/internal/revalidate"
)

// PostService handles business logic for blog posts.
//
// DEPENDENCIES:
//   - posts      the post store
//   - likes      relation store, for isLikedByUser on the detail view
//   - bookmarks  relation store, for isBookmarkedByUser
//   - notifier   tells the presentation layer which cached pages went stale
//   - logger     structured logging of business events
type PostService struct {
	posts     repository.PostRepository
	likes     repository.RelationRepository
	bookmarks repository.RelationRepository
	notifier  revalidate.Notifier
	logger    *slog.Logger

	// now is swapped in tests that assert on publishedAt.
	now func() time.Time
}

func NewPostService(
	posts repository.PostRepository,
	likes, bookmarks repository.RelationRepository,
	notifier revalidate.Notifier,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:     posts,
		likes:     likes,
		bookmarks: bookmarks,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// PublishedQuery selects a page of the public feed.
type PublishedQuery struct {
	Limit      int
	Cursor     *int64
	CategoryID *int64
}

// AllQuery selects a page of the management listing.
type AllQuery struct {
	Limit     int
	Cursor    *int64
	Published *bool
	CreatedBy string
}

// CreatePostInput is the payload of Create. Excerpt and FeaturedImage are
// optional; an empty FeaturedImage is stored as nil.
type CreatePostInput struct {
	Title         string
	Content       string
	Excerpt       *string
	FeaturedImage *string
	CategoryIDs   []int64
	Published     bool
}

// UpdatePostInput is a partial update: nil fields are left unchanged.
// A non-nil CategoryIDs replaces the post's whole category set.
type UpdatePostInput struct {
	Title         *string
	Content       *string
	Excerpt       *string
	FeaturedImage *string
	CategoryIDs   *[]int64
	Published     *bool
}

// GetPublished returns one page of published posts, most recently published
// first, optionally restricted to a category.
func (s *PostService) GetPublished(ctx context.Context, q PublishedQuery) (*pagination.Page[model.Post], error) {
	limit := pagination.Clamp(q.Limit, DefaultPostLimit)

	rows, err := s.posts.ListPublished(ctx, repository.PublishedFilter{
		CategoryID: q.CategoryID,
		Cursor:     q.Cursor,
		Limit:      pagination.Fetch(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing published posts: %w", err)
	}
	return s.page(ctx, rows, limit)
}

// GetBySlug returns the post for its detail view.
//
// Unpublished posts are reported as NotFound to everyone except the owner
// and admins, so the existence of a draft never leaks. For an authenticated
// caller the liked/bookmarked flags are filled in.
func (s *PostService) GetBySlug(ctx context.Context, actor *model.Principal, slug string) (*model.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(actor) {
		return nil, apperror.NotFoundBy("post", "slug", slug)
	}

	if err := s.decorate(ctx, post); err != nil {
		return nil, err
	}

	if actor != nil {
		if post.IsLikedByUser, err = s.likes.Exists(ctx, post.ID, actor.UserID); err != nil {
			return nil, fmt.Errorf("checking like: %w", err)
		}
		if post.IsBookmarkedByUser, err = s.bookmarks.Exists(ctx, post.ID, actor.UserID); err != nil {
			return nil, fmt.Errorf("checking bookmark: %w", err)
		}
	}
	return post, nil
}

// GetAll is the management listing, newest created first.
//
// Admins see every post and may filter by author. Everyone else only ever
// sees their own posts, whatever CreatedBy says.
func (s *PostService) GetAll(ctx context.Context, actor *model.Principal, q AllQuery) (*pagination.Page[model.Post], error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	createdBy := q.CreatedBy
	if !actor.IsAdmin() {
		createdBy = actor.UserID
	}

	limit := pagination.Clamp(q.Limit, DefaultPostLimit)
	rows, err := s.posts.ListAll(ctx, repository.AllFilter{
		Published: q.Published,
		CreatedBy: createdBy,
		Cursor:    q.Cursor,
		Limit:     pagination.Fetch(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return s.page(ctx, rows, limit)
}

// GetByID loads a post for editing. Same visibility rule as GetBySlug.
func (s *PostService) GetByID(ctx context.Context, actor *model.Principal, id int64) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(actor) {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	if err := s.decorate(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Create validates and stores a new post owned by actor.
//
// The slug is a random UUID: permalinks must not change when the title is
// edited, and titles are not unique. Publishing at creation stamps
// publishedAt and invalidates the public pages.
func (s *PostService) Create(ctx context.Context, actor *model.Principal, in CreatePostInput) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	// === VALIDATION ===
	var v apperror.Validation
	title := strings.TrimSpace(in.Title)
	v.Check(title != "", "title", "title is required")
	v.Check(runeLen(title) <= MaxTitleLength, "title",
		fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	excerpt := trimmedOrNil(in.Excerpt)
	if excerpt != nil {
		v.Check(runeLen(*excerpt) <= MaxExcerptLength, "excerpt",
			fmt.Sprintf("excerpt must be %d characters or less", MaxExcerptLength))
	}
	image := trimmedOrNil(in.FeaturedImage)
	if image != nil {
		v.Check(ValidFeaturedImage(*image), "featuredImage", "featured image must be an emoji or a URL")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:         title,
		Slug:          uuid.NewString(),
		Content:       in.Content,
		Excerpt:       excerpt,
		FeaturedImage: image,
		Published:     in.Published,
		CreatedByID:   actor.UserID,
	}
	if in.Published {
		at := s.now()
		post.PublishedAt = &at
	}

	if err := s.posts.Create(ctx, post, in.CategoryIDs); err != nil {
		logStoreFailure(ctx, s.logger, "failed to create post", err, slog.String("user", actor.UserID))
		return nil, fmt.Errorf("creating post: %w", err)
	}

	created, err := s.posts.GetByID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading post %d: %w", post.ID, err)
	}
	if err := s.decorate(ctx, created); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		slog.Int64("id", created.ID),
		slog.String("slug", created.Slug),
		slog.Bool("published", created.Published),
	)

	if created.Published {
		s.notifier.Revalidate(ctx, stalePaths(created, false)...)
	}
	return created, nil
}

// Update applies a partial update. Only the owner may update a post.
//
// Publish transitions:
//   - unpublished → published: publishedAt = now
//   - published → unpublished: publishedAt = nil
//   - published → published:   publishedAt unchanged
func (s *PostService) Update(ctx context.Context, actor *model.Principal, id int64, in UpdatePostInput) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	current, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(current.CreatedByID) {
		return nil, apperror.Forbidden("only the author can edit this post")
	}
	if err := s.decorate(ctx, current); err != nil {
		return nil, err
	}

	// === VALIDATION ===
	var (
		v       apperror.Validation
		changes repository.PostChanges
	)
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		v.Check(title != "", "title", "title is required")
		v.Check(runeLen(title) <= MaxTitleLength, "title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
		changes.Title = &title
	}
	if in.Content != nil {
		changes.Content = in.Content
	}
	if in.Excerpt != nil {
		excerpt := trimmedOrNil(in.Excerpt)
		if excerpt != nil {
			v.Check(runeLen(*excerpt) <= MaxExcerptLength, "excerpt",
				fmt.Sprintf("excerpt must be %d characters or less", MaxExcerptLength))
		}
		changes.Excerpt = &excerpt
	}
	if in.FeaturedImage != nil {
		image := trimmedOrNil(in.FeaturedImage)
		if image != nil {
			v.Check(ValidFeaturedImage(*image), "featuredImage", "featured image must be an emoji or a URL")
		}
		changes.FeaturedImage = &image
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if in.Published != nil {
		changes.Published = in.Published
		switch {
		case *in.Published && !current.Published:
			at := s.now()
			publishedAt := &at
			changes.PublishedAt = &publishedAt
		case !*in.Published:
			var cleared *time.Time
			changes.PublishedAt = &cleared
		}
	}
	changes.CategoryIDs = in.CategoryIDs

	if err := s.posts.Update(ctx, id, changes); err != nil {
		logStoreFailure(ctx, s.logger, "failed to update post", err, slog.Int64("id", id))
		return nil, fmt.Errorf("updating post %d: %w", id, err)
	}
	if changes.CategoryIDs != nil {
		forgetCategories(ctx, id)
	}

	updated, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading post %d: %w", id, err)
	}
	if err := s.decorate(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.Info("post updated",
		slog.Int64("id", updated.ID),
		slog.Bool("published", updated.Published),
	)

	// Categories the post just left are stale too.
	paths := append(stalePaths(current, true), stalePaths(updated, true)...)
	s.notifier.Revalidate(ctx, revalidate.Dedupe(paths)...)
	return updated, nil
}

// Delete removes a post. Only the owner may delete it; likes, bookmarks and
// category links go with it.
func (s *PostService) Delete(ctx context.Context, actor *model.Principal, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	current, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Owns(current.CreatedByID) {
		return apperror.Forbidden("only the author can delete this post")
	}
	if err := s.decorate(ctx, current); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		logStoreFailure(ctx, s.logger, "failed to delete post", err, slog.Int64("id", id))
		return fmt.Errorf("deleting post %d: %w", id, err)
	}
	forgetCategories(ctx, id)

	s.logger.Info("post deleted", slog.Int64("id", id), slog.String("user", actor.UserID))
	s.notifier.Revalidate(ctx, stalePaths(current, true)...)
	return nil
}

func (s *PostService) page(ctx context.Context, rows []model.Post, limit int) (*pagination.Page[model.Post], error) {
	page := pagination.Trim(rows, limit, postKey)
	if err := attachCategories(ctx, s.posts, page.Items); err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	return &page, nil
}

func (s *PostService) decorate(ctx context.Context, post *model.Post) error {
	posts := []model.Post{*post}
	if err := attachCategories(ctx, s.posts, posts); err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}
	post.Categories = posts[0].Categories
	return nil
}

// stalePaths lists the cached pages that show post.
func stalePaths(post *model.Post, withDetail bool) []string {
	paths := []string{revalidate.HomePath, revalidate.CategoriesPath}
	if withDetail {
		paths = append(paths, revalidate.PostPath(post.Slug))
	}
	for _, c := range post.Categories {
		paths = append(paths, revalidate.CategoryPath(c.Slug))
	}
	return paths
}
