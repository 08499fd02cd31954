package model

import "time"

// RelationEntry is one row of a user→post join relation (a like or a
// bookmark). Existence of the row is the whole state; there are no counters.
type RelationEntry struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	Post      *Post     `json:"post,omitempty"`
}

// Like and Bookmark share the same shape.
type (
	Like     = RelationEntry
	Bookmark = RelationEntry
)
