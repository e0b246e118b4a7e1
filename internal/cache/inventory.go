package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix     = "post:%s"
	PostCommentsKey   = "post:%s:comments"
	PostsListKeyConst = "posts:list"
)

const (
	PostTTL     = 30 * time.Minute
	ListTTL     = 1 * time.Minute
	CommentsTTL = 5 * time.Minute
)

func PostKey(postID string) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func CommentsKey(postID string) string {
	return fmt.Sprintf(PostCommentsKey, postID)
}

func PostsListKey() string {
	return PostsListKeyConst
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePost drops the cached detail view and comment list of a post.
func InvalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, CommentsKey(postID))
}

// InvalidatePostsList drops the cached home feed.
func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey())
}
