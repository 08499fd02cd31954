package handler_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/sakif/blog-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryHandler_CRUD(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")

	rr := serve(e.categories.HandleCreate, request(http.MethodPost, "/api/categories",
		map[string]any{"name": "Go Tips"}, alice))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cat := decode[model.Category](t, rr)
	assert.Equal(t, "go-tips", cat.Slug)
	id := strconv.FormatInt(cat.ID, 10)

	rr = serve(e.categories.HandleCreate, request(http.MethodPost, "/api/categories",
		map[string]any{"name": "Go Tips"}, alice))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = serve(e.categories.HandleGetBySlug, request(http.MethodGet, "/api/categories/slug/go-tips", nil, nil, "slug", "go-tips"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, cat.ID, decode[model.Category](t, rr).ID)

	rr = serve(e.categories.HandleUpdate, request(http.MethodPatch, "/api/categories/"+id,
		map[string]any{"description": "tips and tricks"}, alice, "id", id))
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[model.Category](t, rr)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "tips and tricks", *updated.Description)

	rr = serve(e.categories.HandleList, request(http.MethodGet, "/api/categories", nil, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Category](t, rr), 1)

	rr = serve(e.categories.HandleDelete, request(http.MethodDelete, "/api/categories/"+id, nil, alice, "id", id))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(e.categories.HandleGetByID, request(http.MethodGet, "/api/categories/"+id, nil, nil, "id", id))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCategoryHandler_WritesNeedAuth(t *testing.T) {
	e := newEnv(t)

	rr := serve(e.categories.HandleCreate, request(http.MethodPost, "/api/categories",
		map[string]any{"name": "Go"}, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(e.categories.HandleListAdmin, request(http.MethodGet, "/api/admin/categories", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
