// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the coarse permission flag stored on a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a registered account.
//
// Accounts are created on first authentication, either through GitHub OAuth
// (GitHubID set) or local registration (PasswordHash set). Optional profile
// attributes are pointers so "cleared" and "empty" are the same thing: nil.
type User struct {
	ID           string    `json:"id"`
	Email        *string   `json:"email,omitempty"`
	Name         string    `json:"name"`
	Image        *string   `json:"image"`
	Bio          *string   `json:"bio"`
	Website      *string   `json:"website"`
	Twitter      *string   `json:"twitter"`
	GitHub       *string   `json:"github"`
	Role         Role      `json:"role"`
	GitHubID     *int64    `json:"-"`
	PasswordHash *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicProfile is the subset of User anyone may see.
type PublicProfile struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Image   *string `json:"image"`
	Bio     *string `json:"bio"`
	Website *string `json:"website"`
	Twitter *string `json:"twitter"`
	GitHub  *string `json:"github"`
}

// Public strips private fields (email, role, credentials) from u.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:      u.ID,
		Name:    u.Name,
		Image:   u.Image,
		Bio:     u.Bio,
		Website: u.Website,
		Twitter: u.Twitter,
		GitHub:  u.GitHub,
	}
}

// Author is the embedded owner summary attached to posts.
type Author struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// UserStats aggregates what an author's published posts have received.
type UserStats struct {
	TotalPosts     int64 `json:"totalPosts"`
	TotalLikes     int64 `json:"totalLikes"`
	TotalBookmarks int64 `json:"totalBookmarks"`
}
