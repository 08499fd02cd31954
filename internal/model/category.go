package model

import "time"

// Category groups posts. Deleting one removes its post links, never posts.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// PostCount is the number of linked posts; public listings count only
	// published ones.
	PostCount int64 `json:"postCount"`
}
