// Package service contains the access layer: one service per resource,
// each enforcing the business rules on top of the repository contracts.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, authorizes, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take the caller as an explicit *model.Principal argument rather
// than digging it out of the context. A nil principal means "anonymous";
// every operation that needs a caller checks for it first and fails with
// apperror.Unauthorized.
//
// Services return apperror values for everything a client can cause
// (NotFound, Validation, Conflict, Forbidden, Unauthorized) and wrap store
// failures with fmt.Errorf so the handler can turn them into a plain 500.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/loader"
	"github.com/sakif/blog-platform/internal/model"
)

// Page sizes used when the caller does not ask for one.
const (
	DefaultPostLimit     = 10
	DefaultRelationLimit = 20
)

// requireActor fails with Unauthorized for anonymous callers.
func requireActor(actor *model.Principal) error {
	if actor == nil || actor.UserID == "" {
		return apperror.Unauthorized()
	}
	return nil
}

// attachCategories fills Categories on every post. Inside an HTTP request
// the request's dataloader batches the lookup; elsewhere src is queried
// directly.
func attachCategories(ctx context.Context, src loader.CategorySource, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}

	var (
		byPost map[int64][]model.Category
		err    error
	)
	if l := loader.For(ctx); l != nil {
		byPost, err = l.Categories(ctx, ids)
	} else {
		byPost, err = src.CategoriesForPosts(ctx, ids)
	}
	if err != nil {
		return err
	}

	for i := range posts {
		cats := byPost[posts[i].ID]
		if cats == nil {
			cats = []model.Category{}
		}
		posts[i].Categories = cats
	}
	return nil
}

// forgetCategories drops cached category lookups for ids after a write
// changed their links.
func forgetCategories(ctx context.Context, ids ...int64) {
	if l := loader.For(ctx); l != nil {
		l.Forget(ctx, ids...)
	}
}

// logStoreFailure logs err at Error level unless it is an *apperror.AppError.
// Those are the caller's fault and reach the client as 4xx responses.
func logStoreFailure(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func postKey(p model.Post) int64 { return p.ID }

func entryKey(e model.RelationEntry) int64 { return e.ID }
