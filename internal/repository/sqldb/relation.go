package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// Relation is a user→post join table with set semantics. The likes and
// bookmarks tables share one schema, so one implementation serves both;
// table is never user input.
type Relation struct {
	db       *DB
	table    string
	resource string
}

var _ repository.RelationRepository = (*Relation)(nil)

// Toggle deletes the (post, user) row if present and inserts it otherwise,
// returning the resulting membership.
//
// THE TOGGLE RACE:
// Toggle is read-then-write, so two concurrent calls for the same pair can
// interleave like this:
//
//	A: SELECT ... -> no row
//	B: SELECT ... -> no row
//	A: INSERT     -> ok
//	B: INSERT     -> unique violation
//
// The UNIQUE(post_id, user_id) constraint is what keeps the table correct.
// The loser does not fail: it reports the state that now exists (true),
// which is what the user asked for. A double-click therefore never leaves a
// duplicate row behind.
func (r *Relation) Toggle(ctx context.Context, postID int64, userID string) (bool, error) {
	var id int64
	err := r.db.queryRow(ctx, r.db.conn,
		`SELECT id FROM `+r.table+` WHERE post_id = ? AND user_id = ?`,
		postID, userID,
	).Scan(&id)

	switch {
	case err == nil:
		if _, err := r.db.exec(ctx, r.db.conn, `DELETE FROM `+r.table+` WHERE id = ?`, id); err != nil {
			return false, fmt.Errorf("sqldb: deleting %s %d: %w", r.resource, id, err)
		}
		return false, nil

	case errors.Is(err, sql.ErrNoRows):
		_, err := r.db.exec(ctx, r.db.conn,
			`INSERT INTO `+r.table+` (post_id, user_id, created_at) VALUES (?, ?, ?)`,
			postID, userID, now(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return true, nil
			}
			if isForeignKeyViolation(err) {
				return false, apperror.NotFound("post", strconv.FormatInt(postID, 10))
			}
			return false, fmt.Errorf("sqldb: inserting %s: %w", r.resource, err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("sqldb: looking up %s: %w", r.resource, err)
	}
}

func (r *Relation) Exists(ctx context.Context, postID int64, userID string) (bool, error) {
	var n int64
	err := r.db.queryRow(ctx, r.db.conn,
		`SELECT COUNT(*) FROM `+r.table+` WHERE post_id = ? AND user_id = ?`,
		postID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqldb: checking %s: %w", r.resource, err)
	}
	return n > 0, nil
}

func (r *Relation) Count(ctx context.Context, postID int64) (int64, error) {
	var n int64
	err := r.db.queryRow(ctx, r.db.conn,
		`SELECT COUNT(*) FROM `+r.table+` WHERE post_id = ?`,
		postID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqldb: counting %ss of post %d: %w", r.resource, postID, err)
	}
	return n, nil
}

// ListByUser pages the user's entries by (created_at, id) descending with the
// referenced post attached. Posts that are unpublished and not the user's own
// are left out so a later unpublish does not leak through old likes.
func (r *Relation) ListByUser(ctx context.Context, userID string, cursor *int64, limit int) ([]model.RelationEntry, error) {
	w := where{}
	w.add("x.user_id = ?", userID)
	w.add("(p.published = ? OR p.created_by_id = ?)", true, userID)
	if cursor != nil {
		w.add(`(x.created_at, x.id) <= (SELECT c.created_at, c.id FROM `+r.table+` c WHERE c.id = ?)`, *cursor)
	}
	args := append(w.args, limit)

	rows, err := r.db.query(ctx, r.db.conn,
		`SELECT x.id, x.post_id, x.user_id, x.created_at,
		 p.id, p.title, p.slug, p.content, p.excerpt, p.featured_image,
		 p.published, p.published_at, p.created_by_id, p.created_at, p.updated_at,
		 u.id, u.name, u.image,
		 (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		 (SELECT COUNT(*) FROM bookmarks b WHERE b.post_id = p.id)
		 FROM `+r.table+` x
		 JOIN posts p ON p.id = x.post_id
		 JOIN users u ON u.id = p.created_by_id`+
			w.clause()+
			` ORDER BY x.created_at DESC, x.id DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing %ss of %s: %w", r.resource, userID, err)
	}
	defer rows.Close()

	entries := make([]model.RelationEntry, 0, limit)
	for rows.Next() {
		var (
			e model.RelationEntry
			p model.Post
		)
		if err := rows.Scan(
			&e.ID, &e.PostID, &e.UserID, &e.CreatedAt,
			&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.FeaturedImage,
			&p.Published, &p.PublishedAt, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
			&p.Author.ID, &p.Author.Name, &p.Author.Image,
			&p.LikeCount, &p.BookmarkCount,
		); err != nil {
			return nil, fmt.Errorf("sqldb: scanning %s row: %w", r.resource, err)
		}
		e.Post = &p
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating %ss: %w", r.resource, err)
	}
	return entries, nil
}
