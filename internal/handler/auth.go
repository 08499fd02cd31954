package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/service"
)

const stateCookie = "oauth_state"

// SessionConfig controls the token cookie and the post-login redirect.
type SessionConfig struct {
	TTL      time.Duration // cookie lifetime; match the token TTL
	Secure   bool          // HTTPS-only cookie
	Redirect string        // where the browser lands after GitHub login
}

// AuthHandler manages login, registration and session cookies.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, set the cookie
//   - HandleRegister       → create a password account and sign it in
//   - HandleLogin          → email + password sign-in
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the currently logged-in user
//
// DEPENDENCY CHAIN:
//   - svc    *service.AuthService → user lookup/creation and token issuing
//   - github auth.OAuthProvider   → the OAuth code exchange (nil when GitHub login is off)
type AuthHandler struct {
	svc     *service.AuthService
	github  auth.OAuthProvider
	session SessionConfig
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil; the GitHub
// routes are then simply not mounted.
func NewAuthHandler(
	svc *service.AuthService,
	github auth.OAuthProvider,
	session SessionConfig,
	logger *slog.Logger,
) *AuthHandler {
	if session.Redirect == "" {
		session.Redirect = "/"
	}
	return &AuthHandler{
		svc:     svc,
		github:  github,
		session: session,
		logger:  logger,
	}
}

// authResponse is returned by register and login. The token is also set as
// an HttpOnly cookie; API clients can send it as a Bearer header instead.
type authResponse struct {
	User  any    `json:"user"`
	Token string `json:"token"`
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state string goes into a short-lived cookie and into the
// authorization URL. HandleGitHubCallback checks that both agree, which
// proves the callback belongs to a login this browser started.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find or create the local user
//  4. Store the JWT in an HttpOnly cookie
//  5. Redirect to the frontend
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.session.Redirect+"?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// --- Step 3: Find or create the user ---
	result, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}

	// --- Step 4 + 5: Cookie, then back to the app ---
	h.setSession(w, result.Token)
	http.Redirect(w, r, h.session.Redirect, http.StatusSeeOther)
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "a@b.com", "name": "Alice", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}

	h.setSession(w, result.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: result.User, Token: result.Token})
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}

	h.setSession(w, result.Token)
	writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

// HandleLogout clears the JWT cookie, effectively logging the user out.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so logout only deletes the client-side cookie. The
// token itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p := actor(r)
	if p == nil {
		writeError(w, apperror.Unauthorized())
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		serverError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setSession stores the JWT as an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
