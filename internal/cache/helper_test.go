package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPost struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// setupCache points the package at a fresh miniredis instance.
func setupCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestGetSetJSON_RoundTrip(t *testing.T) {
	setupCache(t)
	ctx := context.Background()

	in := cachedPost{ID: "p1", Title: "Hello"}
	require.NoError(t, SetJSON(ctx, PostKey("p1"), in, PostTTL))

	var out cachedPost
	found, err := GetJSON(ctx, PostKey("p1"), &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetJSON_Miss(t *testing.T) {
	setupCache(t)

	var out cachedPost
	found, err := GetJSON(context.Background(), PostKey("nope"), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	setupCache(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedPost) func() error {
		return func() error {
			fetches++
			*dest = cachedPost{ID: "p1", Title: "from db"}
			return nil
		}
	}

	var first cachedPost
	require.NoError(t, Aside(ctx, PostKey("p1"), &first, PostTTL, fetch(&first)))
	assert.Equal(t, 1, fetches)

	var second cachedPost
	require.NoError(t, Aside(ctx, PostKey("p1"), &second, PostTTL, fetch(&second)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, first, second)
}

func TestAside_FetchErrorPropagates(t *testing.T) {
	setupCache(t)

	var out cachedPost
	err := Aside(context.Background(), PostKey("p1"), &out, PostTTL, func() error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	// nothing was cached on failure
	found, err := GetJSON(context.Background(), PostKey("p1"), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidatePost_DropsDetailAndComments(t *testing.T) {
	mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, PostKey("p1"), cachedPost{ID: "p1"}, PostTTL))
	require.NoError(t, SetJSON(ctx, CommentsKey("p1"), []string{"c1"}, CommentsTTL))
	require.NoError(t, SetJSON(ctx, PostsListKey(), []string{"p1"}, ListTTL))

	InvalidatePost(ctx, "p1")

	assert.False(t, mr.Exists(PostKey("p1")))
	assert.False(t, mr.Exists(CommentsKey("p1")))
	assert.True(t, mr.Exists(PostsListKey()))

	InvalidatePostsList(ctx)
	assert.False(t, mr.Exists(PostsListKey()))
}

func TestCache_DegradesWithoutClient(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	var out cachedPost
	found, err := GetJSON(ctx, PostKey("p1"), &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, PostKey("p1"), cachedPost{}, PostTTL))

	// every Aside call goes straight to the source
	fetches := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(ctx, PostKey("p1"), &out, PostTTL, func() error {
			fetches++
			return nil
		}))
	}
	assert.Equal(t, 2, fetches)
}
