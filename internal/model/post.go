package model

import "time"

// Post is a blog article owned by a single user.
//
// Slug is an opaque token assigned at creation and never changed, so
// permalinks survive title edits. PublishedAt is non-nil exactly when
// Published is true.
type Post struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       *string    `json:"excerpt"`
	FeaturedImage *string    `json:"featuredImage"`
	Published     bool       `json:"published"`
	PublishedAt   *time.Time `json:"publishedAt"`
	CreatedByID   string     `json:"createdById"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Read-model fields, filled by queries rather than stored on the row.
	Author        Author     `json:"createdBy"`
	Categories    []Category `json:"categories"`
	LikeCount     int64      `json:"likeCount"`
	BookmarkCount int64      `json:"bookmarkCount"`

	// Only set on the single-post view for an authenticated caller.
	IsLikedByUser      bool `json:"isLikedByUser"`
	IsBookmarkedByUser bool `json:"isBookmarkedByUser"`
}

// VisibleTo reports whether p may be shown to the given caller.
func (p *Post) VisibleTo(actor *Principal) bool {
	return p.Published || actor.Owns(p.CreatedByID) || actor.IsAdmin()
}
