package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// CategoryService manages categories. Reads are public; writes need an
// authenticated caller.
type CategoryService struct {
	repo   repository.CategoryRepository
	logger *slog.Logger
}

func NewCategoryService(repo repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{repo: repo, logger: logger}
}

// CategoryInput is the payload of Create. An empty Slug is derived from Name.
type CategoryInput struct {
	Name        string
	Slug        string
	Description *string
}

// CategoryUpdate is a partial update. An empty Description clears it.
type CategoryUpdate struct {
	Name        *string
	Slug        *string
	Description *string
}

// GetAll lists categories by name with their published post counts.
func (s *CategoryService) GetAll(ctx context.Context) ([]model.Category, error) {
	categories, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryService) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.GetByID(ctx, id, true)
}

func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return s.repo.GetBySlug(ctx, slug, true)
}

// GetAllAdmin lists categories newest first, counting drafts too.
func (s *CategoryService) GetAllAdmin(ctx context.Context, actor *model.Principal) ([]model.Category, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	categories, err := s.repo.ListAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// Create checks slug and name for duplicates before inserting. The store's
// unique constraints still catch a concurrent insert that slips past.
func (s *CategoryService) Create(ctx context.Context, actor *model.Principal, in CategoryInput) (*model.Category, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	// === VALIDATION ===
	var v apperror.Validation
	name := strings.TrimSpace(in.Name)
	v.Check(name != "", "name", "name is required")
	v.Check(runeLen(name) <= MaxCategoryName, "name",
		fmt.Sprintf("name must be %d characters or less", MaxCategoryName))

	slug := Slugify(name)
	if strings.TrimSpace(in.Slug) != "" {
		slug = normalizeSlug(&v, in.Slug)
	} else {
		v.Check(slug != "", "slug", "slug is required")
	}

	description := trimmedOrNil(in.Description)
	if description != nil {
		v.Check(runeLen(*description) <= MaxCategoryDesc, "description",
			fmt.Sprintf("description must be %d characters or less", MaxCategoryDesc))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	// === UNIQUENESS ===
	if err := s.checkUnique(ctx, &name, &slug, 0); err != nil {
		return nil, err
	}

	c := &model.Category{Name: name, Slug: slug, Description: description}
	if err := s.repo.Create(ctx, c); err != nil {
		logStoreFailure(ctx, s.logger, "failed to create category", err, slog.String("slug", slug))
		return nil, fmt.Errorf("creating category: %w", err)
	}

	s.logger.Info("category created", slog.Int64("id", c.ID), slog.String("slug", c.Slug))
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, actor *model.Principal, id int64, in CategoryUpdate) (*model.Category, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var (
		v       apperror.Validation
		changes repository.CategoryChanges
	)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		v.Check(name != "", "name", "name is required")
		v.Check(runeLen(name) <= MaxCategoryName, "name",
			fmt.Sprintf("name must be %d characters or less", MaxCategoryName))
		changes.Name = &name
	}
	if in.Slug != nil {
		slug := normalizeSlug(&v, *in.Slug)
		changes.Slug = &slug
	}
	if in.Description != nil {
		description := trimmedOrNil(in.Description)
		if description != nil {
			v.Check(runeLen(*description) <= MaxCategoryDesc, "description",
				fmt.Sprintf("description must be %d characters or less", MaxCategoryDesc))
		}
		changes.Description = &description
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.checkUnique(ctx, changes.Name, changes.Slug, id); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, changes); err != nil {
		return nil, fmt.Errorf("updating category %d: %w", id, err)
	}

	s.logger.Info("category updated", slog.Int64("id", id))
	return s.repo.GetByID(ctx, id, false)
}

// Delete removes the category. Posts stay; only their links to it go.
func (s *CategoryService) Delete(ctx context.Context, actor *model.Principal, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}
	s.logger.Info("category deleted", slog.Int64("id", id), slog.String("user", actor.UserID))
	return nil
}

// checkUnique reports a Conflict when another category already uses name or
// slug. Slug is checked first. Nil arguments are skipped.
func (s *CategoryService) checkUnique(ctx context.Context, name, slug *string, excludeID int64) error {
	if slug != nil {
		existing, err := s.repo.FindBySlug(ctx, *slug, excludeID)
		if err != nil {
			return fmt.Errorf("checking category slug: %w", err)
		}
		if existing != nil {
			return apperror.Conflict("category", "slug", *slug)
		}
	}
	if name != nil {
		existing, err := s.repo.FindByName(ctx, *name, excludeID)
		if err != nil {
			return fmt.Errorf("checking category name: %w", err)
		}
		if existing != nil {
			return apperror.Conflict("category", "name", *name)
		}
	}
	return nil
}

// normalizeSlug returns raw in Slugify form, so "Go Lang" and "go-lang"
// name the same category. Input with nothing left after normalising is
// rejected.
func normalizeSlug(v *apperror.Validation, raw string) string {
	slug := Slugify(raw)
	if slug == "" {
		if strings.TrimSpace(raw) == "" {
			v.Add("slug", "slug is required")
		} else {
			v.Add("slug", "slug must contain at least one letter or digit")
		}
	}
	return slug
}
