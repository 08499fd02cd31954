package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/pagination"
	"github.com/sakif/blog-platform/internal/service"
)

// PostHandler exposes the post operations.
//
// HANDLER RESPONSIBILITIES:
//   - HandleList      → public feed, published posts only
//   - HandleGetBySlug → detail view (drafts only for owner/admin)
//   - HandleListAll   → management listing (own posts, or any for admins)
//   - HandleGetByID   → management detail
//   - HandleCreate / HandleUpdate / HandleDelete → owner writes
//
// Permission checks live in PostService; the handler only turns HTTP into
// service calls.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// postPage is the list response: {"posts": [...], "nextCursor": 42}.
// nextCursor is omitted on the last page.
type postPage struct {
	Posts      []model.Post `json:"posts"`
	NextCursor *int64       `json:"nextCursor,omitempty"`
}

func newPostPage(p *pagination.Page[model.Post]) postPage {
	return postPage{Posts: p.Items, NextCursor: p.NextCursor}
}

// postRequest is the JSON body of create and update. Every field is a
// pointer so update can tell "absent" from "empty".
type postRequest struct {
	Title         *string  `json:"title"`
	Content       *string  `json:"content"`
	Excerpt       *string  `json:"excerpt"`
	FeaturedImage *string  `json:"featuredImage"`
	CategoryIDs   *[]int64 `json:"categoryIds"`
	Published     *bool    `json:"published"`
}

// HandleList returns a page of published posts.
//
// HTTP: GET /api/posts?limit=10&cursor=42&categoryId=3
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var q service.PublishedQuery
	var err error
	if q.Limit, err = queryLimit(r); err != nil {
		writeError(w, err)
		return
	}
	if q.Cursor, err = queryInt64(r, "cursor"); err != nil {
		writeError(w, err)
		return
	}
	if q.CategoryID, err = queryInt64(r, "categoryId"); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.posts.GetPublished(r.Context(), q)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPostPage(page))
}

// HandleGetBySlug returns one post with like/bookmark flags for the caller.
//
// HTTP: GET /api/posts/slug/{slug}
// Auth: Optional
func (h *PostHandler) HandleGetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetBySlug(r.Context(), actor(r), chi.URLParam(r, "slug"))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleListAll is the management listing.
//
// HTTP: GET /api/admin/posts?limit=&cursor=&published=true&createdBy=<userID>
// Auth: Required. createdBy is honoured for admins only.
func (h *PostHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	q := service.AllQuery{CreatedBy: r.URL.Query().Get("createdBy")}
	var err error
	if q.Limit, err = queryLimit(r); err != nil {
		writeError(w, err)
		return
	}
	if q.Cursor, err = queryInt64(r, "cursor"); err != nil {
		writeError(w, err)
		return
	}
	if q.Published, err = queryBool(r, "published"); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.posts.GetAll(r.Context(), actor(r), q)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPostPage(page))
}

// HandleGetByID returns one post by id for editing.
//
// HTTP: GET /api/admin/posts/{id}
func (h *PostHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.GetByID(r.Context(), actor(r), id)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate creates a post owned by the caller.
//
// HTTP: POST /api/posts
// REQUEST BODY:
//
//	{"title": "...", "content": "...", "categoryIds": [1, 2], "published": true}
//
// Responds 201 with the stored post.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := service.CreatePostInput{
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Content != nil {
		in.Content = *req.Content
	}
	if req.CategoryIDs != nil {
		in.CategoryIDs = *req.CategoryIDs
	}
	if req.Published != nil {
		in.Published = *req.Published
	}

	post, err := h.posts.Create(r.Context(), actor(r), in)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate applies a partial update; omitted fields are unchanged.
//
// HTTP: PATCH /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), actor(r), id, service.UpdatePostInput{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
		CategoryIDs:   req.CategoryIDs,
		Published:     req.Published,
	})
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post together with its likes and bookmarks.
//
// HTTP: DELETE /api/posts/{id}
// Responds 204 No Content.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.posts.Delete(r.Context(), actor(r), id); err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
