package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sakif/blog-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource gives every even post one category named label.
type fakeSource struct {
	calls atomic.Int32
	err   error
	label string
}

func (f *fakeSource) CategoriesForPosts(_ context.Context, ids []int64) (map[int64][]model.Category, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	label := f.label
	if label == "" {
		label = "even"
	}
	out := make(map[int64][]model.Category)
	for _, id := range ids {
		if id%2 == 0 {
			out[id] = []model.Category{{ID: id * 10, Name: label}}
		}
	}
	return out, nil
}

func TestCategories_SingleBatch(t *testing.T) {
	src := &fakeSource{}
	l := New(src, time.Millisecond)

	got, err := l.Categories(context.Background(), []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "even", got[2][0].Name)
	assert.NotContains(t, got, int64(1))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCategories_ConcurrentLoadsAreCoalesced(t *testing.T) {
	src := &fakeSource{}
	l := New(src, 10*time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2, 3, 4} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			got, err := l.Categories(ctx, []int64{id})
			assert.NoError(t, err)
			if id%2 == 1 {
				assert.Empty(t, got)
				return
			}
			assert.Len(t, got[id], 1)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load(), "four loads inside the wait window should be one query")
}

func TestCategories_CachedUntilForgotten(t *testing.T) {
	src := &fakeSource{}
	l := New(src, time.Millisecond)
	ctx := context.Background()

	_, err := l.Categories(ctx, []int64{2, 4})
	require.NoError(t, err)

	src.label = "moved"
	got, err := l.Categories(ctx, []int64{2, 4})
	require.NoError(t, err)
	assert.Equal(t, "even", got[2][0].Name, "second load is served from the cache")
	assert.Equal(t, int32(1), src.calls.Load())

	l.Forget(ctx, 2)
	got, err = l.Categories(ctx, []int64{2, 4})
	require.NoError(t, err)
	assert.Equal(t, "moved", got[2][0].Name)
	assert.Equal(t, "even", got[4][0].Name, "only the forgotten post is reloaded")
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCategories_ErrorReachesEveryCaller(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	l := New(src, time.Millisecond)

	_, err := l.Categories(context.Background(), []int64{1, 2})
	assert.EqualError(t, err, "db down")
}

func TestMiddleware_InstallsFreshLoaders(t *testing.T) {
	src := &fakeSource{}
	var seen []*Loaders
	h := Middleware(src)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, For(r.Context()))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, seen, 2)
	assert.NotNil(t, seen[0])
	assert.NotSame(t, seen[0], seen[1], "loaders must be request-scoped")
	assert.Nil(t, For(context.Background()))
}
