// Package loader batches per-request lookups with dataloader: every
// categories-by-post lookup issued while handling one request is coalesced
// into a single query.
//
// WHY A PER-REQUEST LOADER?
// A feed page, the author archive and the liked-posts list each need the
// categories of many posts. Asking the store post by post is the classic
// N+1 problem:
//
//	SELECT ... FROM post_categories WHERE post_id = 1
//	SELECT ... FROM post_categories WHERE post_id = 2
//	...
//
// The loader collects every key requested within a short wait window and
// issues one CategoriesForPosts call for all of them. Results are cached by
// post id for the rest of the request, so a write that changes a post's
// category links must call Forget before reading them again.
package loader

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/graph-gophers/dataloader"
	"github.com/sakif/blog-platform/internal/model"
)

// CategorySource is the store query behind CategoriesByPost.
type CategorySource interface {
	CategoriesForPosts(ctx context.Context, postIDs []int64) (map[int64][]model.Category, error)
}

type contextKey struct{}

// Loaders holds the request-scoped batch loaders.
type Loaders struct {
	CategoriesByPost *dataloader.Loader
}

// New builds a fresh set of loaders. Loaders cache results, so a set must not
// outlive the request it was built for.
func New(categories CategorySource, wait time.Duration) *Loaders {
	return &Loaders{
		CategoriesByPost: dataloader.NewBatchedLoader(categoriesBatch(categories), dataloader.WithWait(wait)),
	}
}

// Middleware puts a new Loaders into every request's context.
func Middleware(categories CategorySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := New(categories, time.Millisecond)
			next.ServeHTTP(w, r.WithContext(With(r.Context(), l)))
		})
	}
}

// With returns a copy of ctx carrying l.
func With(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// For returns the request's loaders, or nil outside a request (CLI, tests).
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(contextKey{}).(*Loaders)
	return l
}

// Categories loads the categories of every post in ids. Posts with none map
// to nothing.
func (l *Loaders) Categories(ctx context.Context, ids []int64) (map[int64][]model.Category, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = postKey(id)
	}

	values, errs := l.CategoriesByPost.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make(map[int64][]model.Category, len(ids))
	for i, v := range values {
		if cats, ok := v.([]model.Category); ok && len(cats) > 0 {
			out[ids[i]] = cats
		}
	}
	return out, nil
}

// Forget drops the cached categories of the given posts so the next
// Categories call reads them from the store.
func (l *Loaders) Forget(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		l.CategoriesByPost.Clear(ctx, postKey(id))
	}
}

func postKey(id int64) dataloader.Key {
	return dataloader.StringKey(strconv.FormatInt(id, 10))
}

func categoriesBatch(src CategorySource) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]int64, len(keys))
		for i, k := range keys {
			id, err := strconv.ParseInt(k.String(), 10, 64)
			if err != nil {
				return failAll(len(keys), fmt.Errorf("loader: bad post key %q: %w", k.String(), err))
			}
			ids[i] = id
		}

		byPost, err := src.CategoriesForPosts(ctx, ids)
		if err != nil {
			return failAll(len(keys), err)
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: byPost[id]}
		}
		return results
	}
}

func failAll(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}
