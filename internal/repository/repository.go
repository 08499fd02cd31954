// Package repository declares the storage contracts the services depend on.
// internal/repository/sqldb implements them on top of database/sql.
package repository

import (
	"context"
	"time"

	"github.com/sakif/blog-platform/internal/model"
)

// PublishedFilter selects published posts, most recently published first.
type PublishedFilter struct {
	CategoryID *int64
	AuthorID   string
	Cursor     *int64
	Limit      int // rows to fetch, already including the +1 overflow row
}

// AllFilter selects posts regardless of publish state, newest created first.
type AllFilter struct {
	Published *bool
	CreatedBy string
	Cursor    *int64
	Limit     int
}

// PostChanges is a partial post update. Nil fields are left untouched.
// CategoryIDs, when non-nil, replaces the full category set.
type PostChanges struct {
	Title         *string
	Content       *string
	Excerpt       **string
	FeaturedImage **string
	Published     *bool
	PublishedAt   **time.Time
	CategoryIDs   *[]int64
}

type PostRepository interface {
	// Create inserts the post and its category links atomically and fills in
	// ID and timestamps.
	Create(ctx context.Context, post *model.Post, categoryIDs []int64) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	GetBySlug(ctx context.Context, slug string) (*model.Post, error)
	ListPublished(ctx context.Context, f PublishedFilter) ([]model.Post, error)
	ListAll(ctx context.Context, f AllFilter) ([]model.Post, error)
	// Update applies changes atomically, including category replacement.
	Update(ctx context.Context, id int64, changes PostChanges) error
	Delete(ctx context.Context, id int64) error
	CategoriesForPosts(ctx context.Context, postIDs []int64) (map[int64][]model.Category, error)
	StatsForAuthor(ctx context.Context, userID string) (*model.UserStats, error)
}

// CategoryChanges is a partial category update.
type CategoryChanges struct {
	Name        *string
	Slug        *string
	Description **string
}

type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id int64, publishedOnly bool) (*model.Category, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*model.Category, error)
	// FindByName and FindBySlug return (nil, nil) when nothing matches and
	// skip excludeID so updates can keep their own name.
	FindByName(ctx context.Context, name string, excludeID int64) (*model.Category, error)
	FindBySlug(ctx context.Context, slug string, excludeID int64) (*model.Category, error)
	// ListPublic orders by name and counts published posts; ListAdmin orders
	// by creation time and counts every post.
	ListPublic(ctx context.Context) ([]model.Category, error)
	ListAdmin(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, id int64, changes CategoryChanges) error
	Delete(ctx context.Context, id int64) error
}

// RelationRepository is a user→post join relation with set semantics
// (likes, bookmarks).
type RelationRepository interface {
	// Toggle flips membership of (postID, userID) and returns the new state.
	Toggle(ctx context.Context, postID int64, userID string) (bool, error)
	Exists(ctx context.Context, postID int64, userID string) (bool, error)
	Count(ctx context.Context, postID int64) (int64, error)
	// ListByUser returns entries with their posts, newest first, starting at
	// the entry identified by cursor.
	ListByUser(ctx context.Context, userID string, cursor *int64, limit int) ([]model.RelationEntry, error)
}

// ProfileChanges is a partial profile update; a non-nil pointer to nil clears.
type ProfileChanges struct {
	Name    *string
	Bio     **string
	Website **string
	Twitter **string
	GitHub  **string
}

type UserRepository interface {
	// UpsertGitHub creates the user on first GitHub login, or refreshes
	// name/email/image on later ones, keyed by GitHub ID.
	UpsertGitHub(ctx context.Context, user *model.User) error
	// Create inserts a locally registered user.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (*model.User, error)
}
