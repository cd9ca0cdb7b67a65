package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	PostsPrefix     = "posts"
	PostPrefix      = "post"
	UserPostsPrefix = "user-posts"
)

const (
	PostTTL      = 30 * time.Minute
	UserPostsTTL = 5 * time.Minute
)

// ListKey identifies one page of a filtered listing: "{page}:{limit}:{filterHash}".
// Different pages, sizes, or filters never share an entry.
func ListKey(page, limit int, filter any) string {
	return fmt.Sprintf("%d:%d:%s", page, limit, FilterHash(filter))
}

// FilterHash is a stable xxhash of the JSON form of filter. Map keys are
// sorted by encoding/json, so equal filters hash equally.
func FilterHash(filter any) string {
	if filter == nil {
		return "0"
	}
	b, err := json.Marshal(filter)
	if err != nil {
		return "0"
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// UserPostsKey scopes a listing to one author.
func UserPostsKey(userID string, page, limit int) string {
	return userID + ":" + ListKey(page, limit, nil)
}

// InvalidatePost drops the detail entry for a post.
func InvalidatePost(ctx context.Context, c *Cache, postID string) {
	c.Del(ctx, PostPrefix, postID)
}

// InvalidatePostLists drops every cached post listing, plus the author's own listing.
func InvalidatePostLists(ctx context.Context, c *Cache, authorID string) {
	c.DelPrefix(ctx, PostsPrefix)
	if authorID != "" {
		c.DelPrefix(ctx, UserPostsPrefix+":"+authorID)
	}
}
