package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/blog-platform/internal/service"
)

// CategoryHandler exposes category reads (public) and writes (signed in).
type CategoryHandler struct {
	categories *service.CategoryService
	logger     *slog.Logger
}

func NewCategoryHandler(categories *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
}

// HandleList returns every category with its published post count.
//
// HTTP: GET /api/categories
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.GetAll(r.Context())
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// HandleListAdmin counts drafts too.
//
// HTTP: GET /api/admin/categories
func (h *CategoryHandler) HandleListAdmin(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.GetAllAdmin(r.Context(), actor(r))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// HTTP: GET /api/categories/{id}
func (h *CategoryHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	cat, err := h.categories.GetByID(r.Context(), id)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// HTTP: GET /api/categories/slug/{slug}
func (h *CategoryHandler) HandleGetBySlug(w http.ResponseWriter, r *http.Request) {
	cat, err := h.categories.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// HandleCreate creates a category; an omitted slug is derived from the name.
//
// HTTP: POST /api/categories
// REQUEST BODY: {"name": "Go", "slug": "go", "description": "..."}
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := service.CategoryInput{Description: req.Description}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Slug != nil {
		in.Slug = *req.Slug
	}

	cat, err := h.categories.Create(r.Context(), actor(r), in)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// HTTP: PATCH /api/categories/{id}
func (h *CategoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	cat, err := h.categories.Update(r.Context(), actor(r), id, service.CategoryUpdate{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	})
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// HTTP: DELETE /api/categories/{id}
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.categories.Delete(r.Context(), actor(r), id); err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
