package service

import (
	"context"
	"testing"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationToggle_Parity(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	post := f.post(t, alice, "P", true)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		on, err := f.likeSvc.Toggle(ctx, bob, post.ID)
		require.NoError(t, err)
		assert.Equal(t, i%2 == 1, on, "toggle #%d", i)
	}

	liked, err := f.likeSvc.IsMember(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	n, err := f.likeSvc.Count(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bookmarked, err := f.bookmarkSvc.IsMember(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.False(t, bookmarked, "likes and bookmarks are independent")
}

func TestRelationToggle_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	draft := f.post(t, alice, "Draft", false)
	ctx := context.Background()

	_, err := f.likeSvc.Toggle(ctx, nil, draft.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.likeSvc.Toggle(ctx, bob, 404)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.likeSvc.Toggle(ctx, bob, draft.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "drafts are invisible to other users")

	on, err := f.bookmarkSvc.Toggle(ctx, alice, draft.ID)
	require.NoError(t, err)
	assert.True(t, on, "owners may bookmark their drafts")
}

func TestRelationList_Pages(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	goCat := f.category(t, "Go")
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		p := f.post(t, alice, "P", true, goCat.ID)
		ids = append(ids, p.ID)
		_, err := f.bookmarkSvc.Toggle(ctx, bob, p.ID)
		require.NoError(t, err)
	}

	first, err := f.bookmarkSvc.List(ctx, bob, 2, nil)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, ids[2], first.Items[0].PostID, "newest first")
	require.NotNil(t, first.Items[0].Post)
	assert.Len(t, first.Items[0].Post.Categories, 1)

	second, err := f.bookmarkSvc.List(ctx, bob, 2, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[0], second.Items[0].PostID)
	assert.Nil(t, second.NextCursor)

	_, err = f.bookmarkSvc.List(ctx, nil, 0, nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRelationList_DefaultLimit(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	ctx := context.Background()

	for i := 0; i < DefaultRelationLimit+3; i++ {
		p := f.post(t, alice, "P", true)
		_, err := f.likeSvc.Toggle(ctx, alice, p.ID)
		require.NoError(t, err)
	}

	page, err := f.likeSvc.List(ctx, alice, 0, nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, DefaultRelationLimit)
	assert.NotNil(t, page.NextCursor)
}

func TestRelationCount_RequiresActor(t *testing.T) {
	f := newFixture(t)

	_, err := f.likeSvc.Count(context.Background(), nil, 1)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.likeSvc.IsMember(context.Background(), nil, 1)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
