package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/handler"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository/sqldb"
	"github.com/sakif/blog-platform/internal/revalidate"
	"github.com/sakif/blog-platform/internal/service"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// env wires every handler to services backed by an in-memory SQLite store.
type env struct {
	db     *sqldb.DB
	tokens *auth.TokenService
	logger *slog.Logger

	posts      *handler.PostHandler
	categories *handler.CategoryHandler
	likes      *handler.RelationHandler
	bookmarks  *handler.RelationHandler
	users      *handler.UserHandler
	authSvc    *service.AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := sqldb.Open(context.Background(), sqldb.SQLite, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", 0)
	require.NoError(t, err)

	notifier := revalidate.NewLogNotifier(logger)
	postSvc := service.NewPostService(db.Posts(), db.Likes(), db.Bookmarks(), notifier, logger)
	likeSvc := service.NewRelationService("like", db.Likes(), db.Posts(), logger)
	bookmarkSvc := service.NewRelationService("bookmark", db.Bookmarks(), db.Posts(), logger)

	return &env{
		db:         db,
		tokens:     tokens,
		logger:     logger,
		posts:      handler.NewPostHandler(postSvc, logger),
		categories: handler.NewCategoryHandler(service.NewCategoryService(db.Categories(), logger), logger),
		likes:      handler.NewLikeHandler(likeSvc, logger),
		bookmarks:  handler.NewBookmarkHandler(bookmarkSvc, logger),
		users: handler.NewUserHandler(
			service.NewProfileService(db.Users(), logger),
			service.NewUserService(db.Users(), db.Posts(), logger),
			logger,
		),
		authSvc: service.NewAuthService(db.Users(), tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), logger),
	}
}

// user creates a stored account and returns its principal.
func (e *env) user(t *testing.T, name string) *model.Principal {
	t.Helper()
	email := name + "@example.com"
	u := &model.User{Name: name, Email: &email}
	require.NoError(t, e.db.Users().Create(context.Background(), u))
	return &model.Principal{UserID: u.ID, Role: u.Role}
}

// request builds a request with an optional JSON body, caller and chi URL
// params given as name/value pairs.
func request(method, target string, body any, p *model.Principal, params ...string) *http.Request {
	var buf io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		buf = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(method, target, buf)
	r.Header.Set("Content-Type", "application/json")

	ctx := r.Context()
	if p != nil {
		ctx = auth.WithPrincipal(ctx, p)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			rctx.URLParams.Add(params[i], params[i+1])
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return r.WithContext(ctx)
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, r)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

// createPost goes through the handler so tests exercise the JSON contract.
func (e *env) createPost(t *testing.T, p *model.Principal, title string, published bool) model.Post {
	t.Helper()
	rr := serve(e.posts.HandleCreate, request(http.MethodPost, "/api/posts", map[string]any{
		"title":     title,
		"content":   "body of " + title,
		"published": published,
	}, p))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[model.Post](t, rr)
}
