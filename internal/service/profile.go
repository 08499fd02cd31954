package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// ProfileService reads and edits the caller's own profile.
type ProfileService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger}
}

// ProfileInput is the payload of Update. Name is always required. For the
// optional fields nil means "leave as is" and "" means "clear".
type ProfileInput struct {
	Name    string
	Bio     *string
	Website *string
	Twitter *string
	GitHub  *string
}

// Get returns the caller's full user record, email and role included.
func (s *ProfileService) Get(ctx context.Context, actor *model.Principal) (*model.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, actor.UserID)
}

func (s *ProfileService) Update(ctx context.Context, actor *model.Principal, in ProfileInput) (*model.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	// === VALIDATION ===
	var v apperror.Validation
	name := strings.TrimSpace(in.Name)
	v.Check(name != "", "name", "name is required")
	v.Check(runeLen(name) <= MaxProfileNameLength, "name",
		fmt.Sprintf("name must be %d characters or less", MaxProfileNameLength))

	changes := repository.ProfileChanges{Name: &name}

	if in.Bio != nil {
		bio := trimmedOrNil(in.Bio)
		if bio != nil {
			v.Check(runeLen(*bio) <= MaxBioLength, "bio",
				fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
		}
		changes.Bio = &bio
	}
	if in.Website != nil {
		website := trimmedOrNil(in.Website)
		if website != nil {
			v.Check(IsURL(*website), "website", "website must be a valid URL")
		}
		changes.Website = &website
	}
	if in.Twitter != nil {
		twitter := trimmedOrNil(in.Twitter)
		if twitter != nil {
			v.Check(runeLen(*twitter) <= MaxHandleLength, "twitter",
				fmt.Sprintf("twitter handle must be %d characters or less", MaxHandleLength))
		}
		changes.Twitter = &twitter
	}
	if in.GitHub != nil {
		github := trimmedOrNil(in.GitHub)
		if github != nil {
			v.Check(runeLen(*github) <= MaxHandleLength, "github",
				fmt.Sprintf("github handle must be %d characters or less", MaxHandleLength))
		}
		changes.GitHub = &github
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateProfile(ctx, actor.UserID, changes)
	if err != nil {
		logStoreFailure(ctx, s.logger, "failed to update profile", err, slog.String("user", actor.UserID))
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated", slog.String("user", actor.UserID))
	return user, nil
}
