package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// MinPasswordLength applies to local registration only.
const MinPasswordLength = 8

// AuthService handles the authentication business logic.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// Two ways in: GitHub OAuth (the handler exchanges the code, this service
// upserts the account) and local email/password registration. Both end with
// an access token whose subject is the internal user id and whose role claim
// is the user's role at login time.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
//  1. Upsert the user (create on first login, refresh name/email/avatar later)
//  2. Generate an access token carrying the user's role
//  3. Return both so the handler can set the HttpOnly cookie and redirect
//
// It does NOT set cookies or read requests; that is the handler's job.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	ghID := ghUser.ID
	user := &model.User{
		Name:     ghUser.DisplayName(),
		GitHubID: &ghID,
	}
	if ghUser.Email != "" {
		email := strings.ToLower(ghUser.Email)
		user.Email = &email
	}
	if ghUser.AvatarURL != "" {
		image := ghUser.AvatarURL
		user.Image = &image
	}

	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(user)
}

// Register creates a local account and logs it in.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	// === VALIDATION ===
	var v apperror.Validation
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	addr, err := mail.ParseAddress(email)
	v.Check(err == nil && addr.Address == email, "email", "email must be a valid address")
	v.Check(name != "", "name", "name is required")
	v.Check(runeLen(name) <= MaxProfileNameLength, "name",
		fmt.Sprintf("name must be %d characters or less", MaxProfileNameLength))
	v.Check(len(password) >= MinPasswordLength, "password",
		fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	v.Check(len(password) <= auth.MaxPasswordBytes, "password",
		fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Email:        &email,
		Name:         name,
		PasswordHash: &hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering %s: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks an email/password pair. Unknown email, GitHub-only accounts
// and wrong passwords all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.PasswordHash == nil {
		return nil, invalidCredentials()
	}
	if err := s.passwords.Verify(*user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("failed login", slog.String("userID", user.ID))
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// GetUserByID returns the user for the given internal ID. Used by /me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized()
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken is a thin delegation to TokenService.Validate so callers
// only need the service package.
func (s *AuthService) ValidateToken(tokenStr string) (*model.Principal, error) {
	p, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return p, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func invalidCredentials() error {
	return &apperror.AppError{
		Err:     apperror.ErrUnauthorized,
		Message: "invalid email or password",
	}
}
