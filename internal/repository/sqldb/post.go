package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// PostStore implements repository.PostRepository.
type PostStore struct {
	db *DB
}

var _ repository.PostRepository = (*PostStore)(nil)

// postSelect reads the post row together with its author summary and the
// derived like/bookmark counts. Categories are attached separately.
const postSelect = `SELECT p.id, p.title, p.slug, p.content, p.excerpt, p.featured_image,
	p.published, p.published_at, p.created_by_id, p.created_at, p.updated_at,
	u.id, u.name, u.image,
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
	(SELECT COUNT(*) FROM bookmarks b WHERE b.post_id = p.id)
	FROM posts p
	JOIN users u ON u.id = p.created_by_id`

func scanPost(row interface{ Scan(...any) error }, p *model.Post) error {
	return row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.FeaturedImage,
		&p.Published, &p.PublishedAt, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.ID, &p.Author.Name, &p.Author.Image,
		&p.LikeCount, &p.BookmarkCount,
	)
}

// Create inserts post and links it to categoryIDs in one transaction.
// An unknown category id is reported as a validation error on categoryIds.
func (s *PostStore) Create(ctx context.Context, post *model.Post, categoryIDs []int64) error {
	ts := now()
	post.CreatedAt = ts
	post.UpdatedAt = ts
	if post.PublishedAt != nil {
		t := post.PublishedAt.UTC().Truncate(time.Microsecond)
		post.PublishedAt = &t
	}

	err := s.db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		err := s.db.queryRow(ctx, tx,
			`INSERT INTO posts (title, slug, content, excerpt, featured_image,
			 published, published_at, created_by_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			post.Title, post.Slug, post.Content, post.Excerpt, post.FeaturedImage,
			post.Published, post.PublishedAt, post.CreatedByID, post.CreatedAt, post.UpdatedAt,
		).Scan(&post.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("post", "slug", post.Slug)
			}
			if isForeignKeyViolation(err) {
				return apperror.NotFound("user", post.CreatedByID)
			}
			return fmt.Errorf("sqldb: inserting post: %w", err)
		}
		return s.linkCategories(ctx, tx, post.ID, categoryIDs)
	})
	if err != nil {
		return err
	}

	s.db.logger.Debug("post created", "id", post.ID, "slug", post.Slug)
	return nil
}

func (s *PostStore) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	err := scanPost(s.db.queryRow(ctx, s.db.conn, postSelect+` WHERE p.id = ?`, id), &p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting post %d: %w", id, err)
	}
	return &p, nil
}

func (s *PostStore) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	var p model.Post
	err := scanPost(s.db.queryRow(ctx, s.db.conn, postSelect+` WHERE p.slug = ?`, slug), &p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundBy("post", "slug", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting post by slug %q: %w", slug, err)
	}
	return &p, nil
}

// ListPublished pages published posts by (published_at, id) descending.
//
// HOW THE ANCHOR-ROW CURSOR WORKS:
// The cursor is the id of the first post of the requested page, not an
// offset. The subquery looks that post up and the row-value comparison keeps
// everything at or after it in sort order:
//
//	(p.published_at, p.id) <= (anchor.published_at, anchor.id)
//
// Comparing the pair instead of published_at alone keeps posts published in
// the same second from being skipped or repeated, and the id breaks the tie.
// Unlike OFFSET, a post published while a reader is paging does not shift
// later pages. If the anchor post no longer exists the comparison against an
// empty subquery is NULL and the page comes back empty.
func (s *PostStore) ListPublished(ctx context.Context, f repository.PublishedFilter) ([]model.Post, error) {
	w := where{}
	w.add("p.published = ?", true)
	if f.CategoryID != nil {
		w.add(`EXISTS (SELECT 1 FROM post_categories pc
			WHERE pc.post_id = p.id AND pc.category_id = ?)`, *f.CategoryID)
	}
	if f.AuthorID != "" {
		w.add("p.created_by_id = ?", f.AuthorID)
	}
	if f.Cursor != nil {
		w.add(`(p.published_at, p.id) <= (SELECT c.published_at, c.id FROM posts c WHERE c.id = ?)`, *f.Cursor)
	}

	return s.list(ctx, w, "p.published_at DESC, p.id DESC", f.Limit)
}

// ListAll pages every post by (created_at, id) descending, optionally
// filtered by publish state and owner.
func (s *PostStore) ListAll(ctx context.Context, f repository.AllFilter) ([]model.Post, error) {
	w := where{}
	if f.Published != nil {
		w.add("p.published = ?", *f.Published)
	}
	if f.CreatedBy != "" {
		w.add("p.created_by_id = ?", f.CreatedBy)
	}
	if f.Cursor != nil {
		w.add(`(p.created_at, p.id) <= (SELECT c.created_at, c.id FROM posts c WHERE c.id = ?)`, *f.Cursor)
	}

	return s.list(ctx, w, "p.created_at DESC, p.id DESC", f.Limit)
}

func (s *PostStore) list(ctx context.Context, w where, order string, limit int) ([]model.Post, error) {
	args := append(w.args, limit)
	rows, err := s.db.query(ctx, s.db.conn,
		postSelect+w.clause()+` ORDER BY `+order+` LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("sqldb: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating posts: %w", err)
	}
	return posts, nil
}

// Update writes the non-nil fields of changes. When CategoryIDs is set the
// old links are deleted and the new ones inserted in the same transaction.
func (s *PostStore) Update(ctx context.Context, id int64, changes repository.PostChanges) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if changes.Title != nil {
		set("title", *changes.Title)
	}
	if changes.Content != nil {
		set("content", *changes.Content)
	}
	if changes.Excerpt != nil {
		set("excerpt", *changes.Excerpt)
	}
	if changes.FeaturedImage != nil {
		set("featured_image", *changes.FeaturedImage)
	}
	if changes.Published != nil {
		set("published", *changes.Published)
	}
	if changes.PublishedAt != nil {
		at := *changes.PublishedAt
		if at != nil {
			t := at.UTC().Truncate(time.Microsecond)
			at = &t
		}
		set("published_at", at)
	}
	set("updated_at", now())
	args = append(args, id)

	return s.db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		res, err := s.db.exec(ctx, tx,
			`UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("sqldb: updating post %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("post", strconv.FormatInt(id, 10))
		}

		if changes.CategoryIDs == nil {
			return nil
		}
		if _, err := s.db.exec(ctx, tx, `DELETE FROM post_categories WHERE post_id = ?`, id); err != nil {
			return fmt.Errorf("sqldb: clearing categories of post %d: %w", id, err)
		}
		return s.linkCategories(ctx, tx, id, *changes.CategoryIDs)
	})
}

// Delete removes the post; its category links, likes and bookmarks cascade.
func (s *PostStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, s.db.conn, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	return nil
}

// CategoriesForPosts returns the categories of each post, sorted by name.
// Posts without categories map to nothing.
func (s *PostStore) CategoriesForPosts(ctx context.Context, postIDs []int64) (map[int64][]model.Category, error) {
	out := make(map[int64][]model.Category, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}

	rows, err := s.db.query(ctx, s.db.conn,
		`SELECT pc.post_id, c.id, c.name, c.slug, c.description, c.created_at, c.updated_at
		 FROM post_categories pc
		 JOIN categories c ON c.id = pc.category_id
		 WHERE pc.post_id IN (`+placeholders(len(postIDs))+`)
		 ORDER BY c.name`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: loading post categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			c      model.Category
		)
		if err := rows.Scan(&postID, &c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqldb: scanning post category row: %w", err)
		}
		out[postID] = append(out[postID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating post categories: %w", err)
	}
	return out, nil
}

// StatsForAuthor counts the author's published posts and the likes and
// bookmarks those posts received.
func (s *PostStore) StatsForAuthor(ctx context.Context, userID string) (*model.UserStats, error) {
	var st model.UserStats
	err := s.db.queryRow(ctx, s.db.conn,
		`SELECT
		 (SELECT COUNT(*) FROM posts p WHERE p.created_by_id = ? AND p.published = ?),
		 (SELECT COUNT(*) FROM likes l JOIN posts p ON p.id = l.post_id
		  WHERE p.created_by_id = ? AND p.published = ?),
		 (SELECT COUNT(*) FROM bookmarks b JOIN posts p ON p.id = b.post_id
		  WHERE p.created_by_id = ? AND p.published = ?)`,
		userID, true, userID, true, userID, true,
	).Scan(&st.TotalPosts, &st.TotalLikes, &st.TotalBookmarks)
	if err != nil {
		return nil, fmt.Errorf("sqldb: counting stats for %s: %w", userID, err)
	}
	return &st, nil
}

func (s *PostStore) linkCategories(ctx context.Context, tx DBTX, postID int64, categoryIDs []int64) error {
	seen := make(map[int64]bool, len(categoryIDs))
	for _, cid := range categoryIDs {
		if seen[cid] {
			continue
		}
		seen[cid] = true

		_, err := s.db.exec(ctx, tx,
			`INSERT INTO post_categories (post_id, category_id) VALUES (?, ?)`,
			postID, cid,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.ValidationFailed("categoryIds",
					fmt.Sprintf("category %d does not exist", cid))
			}
			return fmt.Errorf("sqldb: linking post %d to category %d: %w", postID, cid, err)
		}
	}
	return nil
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
