package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileGet(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	u, err := f.profileSvc.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)

	_, err = f.profileSvc.Get(context.Background(), nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.profileSvc.Get(context.Background(), &model.Principal{UserID: "ghost"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProfileUpdate_SetClearKeep(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	ctx := context.Background()

	u, err := f.profileSvc.Update(ctx, alice, ProfileInput{
		Name:    "Alice",
		Bio:     ptr("Gopher"),
		Website: ptr("https://alice.dev"),
		Twitter: ptr("alice"),
		GitHub:  ptr("alice-gh"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	require.NotNil(t, u.Website)
	assert.Equal(t, "https://alice.dev", *u.Website)

	// Empty string clears, nil leaves as is.
	u, err = f.profileSvc.Update(ctx, alice, ProfileInput{Name: "Alice", Bio: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, u.Bio)
	require.NotNil(t, u.Twitter)
	assert.Equal(t, "alice", *u.Twitter)
	require.NotNil(t, u.GitHub)
	require.NotNil(t, u.Website)
}

func TestProfileUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	tests := []struct {
		name  string
		in    ProfileInput
		field string
	}{
		{"missing name", ProfileInput{Name: " "}, "name"},
		{"long name", ProfileInput{Name: strings.Repeat("a", MaxProfileNameLength+1)}, "name"},
		{"long bio", ProfileInput{Name: "A", Bio: ptr(strings.Repeat("b", MaxBioLength+1))}, "bio"},
		{"bad website", ProfileInput{Name: "A", Website: ptr("alice.dev")}, "website"},
		{"long twitter", ProfileInput{Name: "A", Twitter: ptr(strings.Repeat("t", MaxHandleLength+1))}, "twitter"},
		{"long github", ProfileInput{Name: "A", GitHub: ptr(strings.Repeat("g", MaxHandleLength+1))}, "github"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.profileSvc.Update(context.Background(), alice, tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestProfileUpdate_MultibyteLimits(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	// 100 three-byte characters fit; the limit counts characters.
	_, err := f.profileSvc.Update(context.Background(), alice, ProfileInput{Name: strings.Repeat("名", MaxProfileNameLength)})
	assert.NoError(t, err)
}
