// Package service implements the blog's use cases on top of the repositories,
// the cache and the image store.
package service

import (
	"context"
	"strings"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminCheck reports whether a user may act on content it does not own.
type AdminCheck func(ctx context.Context, userID primitive.ObjectID) (bool, error)

// authorize allows the owner, then anyone isAdmin approves.
func authorize(ctx context.Context, isAdmin AdminCheck, actor, owner primitive.ObjectID, denied string) error {
	if actor == owner {
		return nil
	}
	if isAdmin == nil {
		return models.NewForbiddenError(denied)
	}
	admin, err := isAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(denied)
	}
	return nil
}

// cachedPost reads an active post through the post:{id} cache entry.
func cachedPost(ctx context.Context, c *cache.Cache, posts repository.PostRepository, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, c, cache.PostPrefix, id.Hex(), cache.PostTTL, &post, func() error {
		found, err := posts.FindActiveByID(ctx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return models.NewNotFoundError("post")
		}
		post = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// activePost reads an active post straight from the store, for use before a mutation.
func activePost(ctx context.Context, posts repository.PostRepository, id primitive.ObjectID) (*models.Post, error) {
	post, err := posts.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("post")
	}
	return post, nil
}

// invalidatePost drops every cache entry that can contain the post.
func invalidatePost(ctx context.Context, c *cache.Cache, post *models.Post) {
	cache.InvalidatePost(ctx, c, post.ID.Hex())
	cache.InvalidatePostLists(ctx, c, post.Author.Hex())
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
