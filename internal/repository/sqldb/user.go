package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// UserStore implements repository.UserRepository.
type UserStore struct {
	db *DB
}

var _ repository.UserRepository = (*UserStore)(nil)

const userColumns = `id, email, name, image, bio, website, twitter, github, role,
	github_id, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Image,
		&u.Bio, &u.Website, &u.Twitter, &u.GitHub,
		&u.Role, &u.GitHubID, &u.PasswordHash,
		&u.CreatedAt, &u.UpdatedAt,
	)
}

// UpsertGitHub inserts or refreshes a user keyed by GitHub ID.
//
// Lookup order: github_id first, then email. A local account whose email
// matches is linked to the GitHub identity rather than duplicated. Profile
// fields the user edited (bio, links) are never overwritten here; only
// name/email/image come from GitHub, and name only while it is still empty.
func (s *UserStore) UpsertGitHub(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqldb: upserting user: github id is required")
	}

	existing, err := s.findUser(ctx, `github_id = ?`, *user.GitHubID)
	if err != nil {
		return err
	}
	if existing == nil && user.Email != nil {
		existing, err = s.findUser(ctx, `email = ?`, *user.Email)
		if err != nil {
			return err
		}
	}

	if existing != nil {
		ts := now()
		name := existing.Name
		if name == "" {
			name = user.Name
		}
		_, err = s.db.exec(ctx, s.db.conn,
			`UPDATE users SET github_id = ?, name = ?, email = COALESCE(?, email),
			 image = COALESCE(?, image), updated_at = ?
			 WHERE id = ?`,
			*user.GitHubID, name, user.Email, user.Image, ts, existing.ID,
		)
		if err != nil {
			return fmt.Errorf("sqldb: updating user %s: %w", existing.ID, err)
		}
		refreshed, err := s.GetUserByID(ctx, existing.ID)
		if err != nil {
			return err
		}
		*user = *refreshed
		return nil
	}

	return s.Create(ctx, user)
}

// Create inserts a new user with a fresh xid and USER role unless one is set.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := s.db.exec(ctx, s.db.conn,
		`INSERT INTO users (id, email, name, image, bio, website, twitter, github,
		 role, github_id, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Image,
		user.Bio, user.Website, user.Twitter, user.GitHub,
		string(user.Role), user.GitHubID, user.PasswordHash,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			email := ""
			if user.Email != nil {
				email = *user.Email
			}
			return apperror.Conflict("user", "email", email)
		}
		return fmt.Errorf("sqldb: inserting user: %w", err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound when no user has that id.
func (s *UserStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.findUser(ctx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.findUser(ctx, `email = ?`, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFoundBy("user", "email", email)
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of changes and returns the
// updated user.
func (s *UserStore) UpdateProfile(ctx context.Context, id string, changes repository.ProfileChanges) (*model.User, error) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)

	if changes.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *changes.Name)
	}
	optional := []struct {
		column string
		value  **string
	}{
		{"bio", changes.Bio},
		{"website", changes.Website},
		{"twitter", changes.Twitter},
		{"github", changes.GitHub},
	}
	for _, f := range optional {
		if f.value != nil {
			sets = append(sets, f.column+" = ?")
			args = append(args, *f.value)
		}
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	res, err := s.db.exec(ctx, s.db.conn,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: updating profile %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("sqldb: checking rows affected: %w", err)
	} else if n == 0 {
		return nil, apperror.NotFound("user", id)
	}

	return s.GetUserByID(ctx, id)
}

// findUser returns (nil, nil) when no row matches.
func (s *UserStore) findUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := scanUser(s.db.queryRow(ctx, s.db.conn,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: looking up user by %s: %w", where, err)
	}
	return &u, nil
}

// placeholders returns "?, ?, ?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
