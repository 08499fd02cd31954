package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/blog-platform/internal/service"
)

// RelationHandler serves likes and bookmarks. The two relations share one
// service type; only the JSON keys differ:
//
//	POST /api/posts/{id}/like        → {"liked": true}
//	GET  /api/me/likes               → {"likes": [...], "nextCursor": 7}
//	POST /api/posts/{id}/bookmark    → {"bookmarked": true}
//	GET  /api/me/bookmarks           → {"bookmarks": [...]}
type RelationHandler struct {
	relations *service.RelationService
	listKey   string
	stateKey  string
	logger    *slog.Logger
}

// NewLikeHandler serves the like relation.
func NewLikeHandler(likes *service.RelationService, logger *slog.Logger) *RelationHandler {
	return &RelationHandler{relations: likes, listKey: "likes", stateKey: "liked", logger: logger}
}

// NewBookmarkHandler serves the bookmark relation.
func NewBookmarkHandler(bookmarks *service.RelationService, logger *slog.Logger) *RelationHandler {
	return &RelationHandler{relations: bookmarks, listKey: "bookmarks", stateKey: "bookmarked", logger: logger}
}

// HandleToggle flips the caller's membership and returns the new state.
func (h *RelationHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	on, err := h.relations.Toggle(r.Context(), actor(r), postID)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{h.stateKey: on})
}

// HandleStatus reports whether the caller has liked/bookmarked the post.
func (h *RelationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	on, err := h.relations.IsMember(r.Context(), actor(r), postID)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{h.stateKey: on})
}

// HandleCount returns {"count": n} for the post.
func (h *RelationHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := h.relations.Count(r.Context(), actor(r), postID)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// HandleList pages through the caller's entries, newest first.
func (h *RelationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cursor, err := queryInt64(r, "cursor")
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.relations.List(r.Context(), actor(r), limit, cursor)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}

	body := map[string]any{h.listKey: page.Items}
	if page.NextCursor != nil {
		body["nextCursor"] = *page.NextCursor
	}
	writeJSON(w, http.StatusOK, body)
}
