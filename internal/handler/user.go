package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/blog-platform/internal/service"
)

// UserHandler serves the caller's own profile and other users' public pages.
//
//	GET /api/profile            → full record of the caller
//	PUT /api/profile            → update name, bio and links
//	GET /api/users/{id}         → public profile
//	GET /api/users/{id}/posts   → that user's published posts
//	GET /api/users/{id}/stats   → {"totalPosts": n}
type UserHandler struct {
	profiles *service.ProfileService
	users    *service.UserService
	logger   *slog.Logger
}

func NewUserHandler(profiles *service.ProfileService, users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, users: users, logger: logger}
}

// profileRequest: omitted optional fields stay, "" clears them.
type profileRequest struct {
	Name    string  `json:"name"`
	Bio     *string `json:"bio"`
	Website *string `json:"website"`
	Twitter *string `json:"twitter"`
	GitHub  *string `json:"github"`
}

func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.Get(r.Context(), actor(r))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.profiles.Update(r.Context(), actor(r), service.ProfileInput{
		Name:    req.Name,
		Bio:     req.Bio,
		Website: req.Website,
		Twitter: req.Twitter,
		GitHub:  req.GitHub,
	})
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *UserHandler) HandleGetUserPosts(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.users.GetPosts(r.Context(), chi.URLParam(r, "id"), limit, cursor)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPostPage(page))
}

func (h *UserHandler) HandleGetUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.GetStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
