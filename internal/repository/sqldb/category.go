package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// CategoryStore implements repository.CategoryRepository.
type CategoryStore struct {
	db *DB
}

var _ repository.CategoryRepository = (*CategoryStore)(nil)

// categorySelect takes the two count arguments produced by countArgs.
const categorySelect = `SELECT c.id, c.name, c.slug, c.description, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM post_categories pc JOIN posts p ON p.id = pc.post_id
	 WHERE pc.category_id = c.id AND (p.published = ? OR ? = 0))
	FROM categories c`

func scanCategory(row interface{ Scan(...any) error }, c *model.Category) error {
	return row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.PostCount)
}

// countArgs fills the two placeholders of categorySelect.
func countArgs(publishedOnly bool) []any {
	flag := 0
	if publishedOnly {
		flag = 1
	}
	return []any{true, flag}
}

// Create inserts c. The unique constraints on name and slug are the final
// guard; a violation is reported as a Conflict on the offending column.
func (s *CategoryStore) Create(ctx context.Context, c *model.Category) error {
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts

	err := s.db.queryRow(ctx, s.db.conn,
		`INSERT INTO categories (name, slug, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`,
		c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return categoryConflict(err, c.Name, c.Slug)
		}
		return fmt.Errorf("sqldb: inserting category: %w", err)
	}
	return nil
}

func (s *CategoryStore) GetByID(ctx context.Context, id int64, publishedOnly bool) (*model.Category, error) {
	var c model.Category
	args := append(countArgs(publishedOnly), id)
	err := scanCategory(s.db.queryRow(ctx, s.db.conn, categorySelect+` WHERE c.id = ?`, args...), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting category %d: %w", id, err)
	}
	return &c, nil
}

func (s *CategoryStore) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*model.Category, error) {
	var c model.Category
	args := append(countArgs(publishedOnly), slug)
	err := scanCategory(s.db.queryRow(ctx, s.db.conn, categorySelect+` WHERE c.slug = ?`, args...), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundBy("category", "slug", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting category by slug %q: %w", slug, err)
	}
	return &c, nil
}

func (s *CategoryStore) FindByName(ctx context.Context, name string, excludeID int64) (*model.Category, error) {
	return s.findOther(ctx, "name", name, excludeID)
}

func (s *CategoryStore) FindBySlug(ctx context.Context, slug string, excludeID int64) (*model.Category, error) {
	return s.findOther(ctx, "slug", slug, excludeID)
}

func (s *CategoryStore) findOther(ctx context.Context, column, value string, excludeID int64) (*model.Category, error) {
	var c model.Category
	args := append(countArgs(false), value, excludeID)
	err := scanCategory(s.db.queryRow(ctx, s.db.conn,
		categorySelect+` WHERE c.`+column+` = ? AND c.id <> ?`, args...), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb: looking up category by %s: %w", column, err)
	}
	return &c, nil
}

// ListPublic returns every category by name with its published post count.
func (s *CategoryStore) ListPublic(ctx context.Context) ([]model.Category, error) {
	return s.list(ctx, true, "c.name ASC")
}

// ListAdmin returns every category, newest first, counting all linked posts.
func (s *CategoryStore) ListAdmin(ctx context.Context) ([]model.Category, error) {
	return s.list(ctx, false, "c.created_at DESC, c.id DESC")
}

func (s *CategoryStore) list(ctx context.Context, publishedOnly bool, order string) ([]model.Category, error) {
	rows, err := s.db.query(ctx, s.db.conn, categorySelect+` ORDER BY `+order, countArgs(publishedOnly)...)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("sqldb: scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryStore) Update(ctx context.Context, id int64, changes repository.CategoryChanges) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if changes.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *changes.Name)
	}
	if changes.Slug != nil {
		sets = append(sets, "slug = ?")
		args = append(args, *changes.Slug)
	}
	if changes.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *changes.Description)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	res, err := s.db.exec(ctx, s.db.conn,
		`UPDATE categories SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			var name, slug string
			if changes.Name != nil {
				name = *changes.Name
			}
			if changes.Slug != nil {
				slug = *changes.Slug
			}
			return categoryConflict(err, name, slug)
		}
		return fmt.Errorf("sqldb: updating category %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	return nil
}

// Delete removes the category. Its post links cascade; posts are untouched.
func (s *CategoryStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, s.db.conn, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting category %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	return nil
}

func categoryConflict(err error, name, slug string) error {
	if uniqueColumn(err) == "slug" {
		return apperror.Conflict("category", "slug", slug)
	}
	return apperror.Conflict("category", "name", name)
}
