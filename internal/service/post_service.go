package service

import (
	"context"
	"strings"
	"time"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/storage"
	"quill/internal/validation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultPostsTTL applies when no list TTL is configured.
const DefaultPostsTTL = time.Hour

var sortableFields = map[string]string{
	"createdAt":   "createdAt",
	"publishedAt": "publishedAt",
	"title":       "title",
}

type PostService struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	cache   *cache.Cache
	images  storage.ImageStore
	isAdmin AdminCheck
	cfg     PostServiceConfig
	logger  *observability.StructuredLogger
	now     func() time.Time
}

// PostServiceConfig carries the tunables of PostService.
type PostServiceConfig struct {
	ListTTL     time.Duration
	MaxUploadMB int
}

type CreatePostInput struct {
	AuthorID primitive.ObjectID   `json:"-"`
	Title    string               `json:"title" validate:"required,max=300"`
	Content  string               `json:"content" validate:"required,max=50000"`
	Tags     []string             `json:"tags" validate:"max=20,dive,max=40"`
	Image    *storage.ImageUpload `json:"-"`
}

type ListPostsInput struct {
	Page   int
	Limit  int
	Search string
	Tag    string
	Sort   string
	Order  string
}

type UserPostsInput struct {
	ActorID primitive.ObjectID
	UserID  primitive.ObjectID
	Page    int
	Limit   int
}

// UpdatePostInput leaves a field unchanged when it is nil.
type UpdatePostInput struct {
	ActorID primitive.ObjectID   `json:"-"`
	PostID  primitive.ObjectID   `json:"-"`
	Title   *string              `json:"title" validate:"omitempty,max=300"`
	Content *string              `json:"content" validate:"omitempty,max=50000"`
	Tags    *[]string            `json:"tags" validate:"omitempty,max=20,dive,max=40"`
	Image   *storage.ImageUpload `json:"-"`
}

type DeletePostInput struct {
	ActorID primitive.ObjectID
	PostID  primitive.ObjectID
}

type LikePostInput struct {
	ActorID primitive.ObjectID
	PostID  primitive.ObjectID
}

// PostPage is one page of posts.
type PostPage = repository.PaginatedResult[models.Post]

func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	c *cache.Cache,
	images storage.ImageStore,
	isAdmin AdminCheck,
	cfg PostServiceConfig,
) *PostService {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = DefaultPostsTTL
	}
	return &PostService{
		posts:   posts,
		users:   users,
		cache:   c,
		images:  images,
		isAdmin: isAdmin,
		cfg:     cfg,
		logger:  observability.NewStructuredLogger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer func() { observability.EndSpan(span, err) }()

	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post = models.NewPost(in.AuthorID, in.Title, in.Content, normalizeTags(in.Tags), s.now())
	if in.Image != nil {
		uploaded, err := s.upload(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = uploaded.URL
		post.ImagePublicID = uploaded.PublicID
	}

	created, err := s.posts.Create(ctx, post)
	if err != nil {
		if post.ImagePublicID != "" {
			s.destroy(ctx, "CreatePost", post.ImagePublicID)
		}
		return nil, err
	}

	invalidatePost(ctx, s.cache, created)
	s.logger.LogServiceCall(ctx, "PostService", "CreatePost", map[string]any{"post_id": created.ID.Hex()})
	return created, nil
}

// FetchPosts lists active posts. Each page, size and filter is cached under its own key.
func (s *PostService) FetchPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	sortField, err := resolveSort(in.Sort)
	if err != nil {
		return nil, err
	}
	opts := repository.PaginationOptions{
		Page:       in.Page,
		Limit:      in.Limit,
		Search:     strings.TrimSpace(in.Search),
		Conditions: []string{"title", "content"},
		SortField:  sortField,
		SortOrder:  strings.ToLower(in.Order),
	}
	page, limit, _ := opts.Normalize()

	filter := bson.M{}
	tag := strings.ToLower(strings.TrimSpace(in.Tag))
	if tag != "" {
		filter["tags"] = tag
	}
	key := cache.ListKey(page, limit, map[string]string{
		"search": opts.Search,
		"tag":    tag,
		"sort":   opts.SortField,
		"order":  opts.SortOrder,
	})

	var out PostPage
	err = cache.Aside(ctx, s.cache, cache.PostsPrefix, key, s.cfg.ListTTL, &out, func() error {
		res, err := s.posts.ListActive(ctx, filter, opts)
		if err != nil {
			return err
		}
		out = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostService) FindPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return cachedPost(ctx, s.cache, s.posts, id)
}

// UserPosts lists a user's own active posts. Users may only list their own.
func (s *PostService) UserPosts(ctx context.Context, in UserPostsInput) (*PostPage, error) {
	if in.ActorID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only view your own posts")
	}
	exists, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("user")
	}

	opts := repository.PaginationOptions{Page: in.Page, Limit: in.Limit}
	page, limit, _ := opts.Normalize()

	var out PostPage
	err = cache.Aside(ctx, s.cache, cache.UserPostsPrefix, cache.UserPostsKey(in.UserID.Hex(), page, limit), cache.UserPostsTTL, &out, func() error {
		res, err := s.posts.ListByAuthor(ctx, in.UserID, opts)
		if err != nil {
			return err
		}
		out = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost merges the provided fields into the post. Only the author or an
// admin may update it.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (updated *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "UpdatePost")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	actor, err := s.users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, models.NewUnauthorizedError("User no longer exists")
	}

	post, err := activePost(ctx, s.posts, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, s.isAdmin, in.ActorID, post.Author, "You can only update your own posts"); err != nil {
		return nil, err
	}

	set := bson.M{"editedAt": s.now()}
	if in.Title != nil {
		set["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		set["content"] = *in.Content
	}
	if in.Tags != nil {
		set["tags"] = normalizeTags(*in.Tags)
	}
	var newImage string
	if in.Image != nil {
		if err := in.Image.Validate(s.cfg.MaxUploadMB); err != nil {
			return nil, err
		}
		if s.images == nil {
			return nil, errUploadsUnavailable()
		}
		uploaded, err := s.upload(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		set["image"] = uploaded.URL
		set["imagePublicId"] = uploaded.PublicID
		newImage = uploaded.PublicID
	}

	updated, err = s.posts.Update(ctx, in.PostID, set)
	if err == nil && updated == nil {
		err = models.NewNotFoundError("post")
	}
	if err != nil {
		if newImage != "" {
			s.destroy(ctx, "UpdatePost", newImage)
		}
		return nil, err
	}
	if old := imagePublicID(post); newImage != "" && old != "" {
		s.destroy(ctx, "UpdatePost", old)
	}

	invalidatePost(ctx, s.cache, updated)
	s.logger.LogServiceCall(ctx, "PostService", "UpdatePost", map[string]any{"post_id": in.PostID.Hex()})
	return updated, nil
}

// RemovePost soft-deletes the post after destroying its image. Removing a post
// that is already inactive reports not found.
func (s *PostService) RemovePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "RemovePost")
	defer func() { observability.EndSpan(span, err) }()

	post, err := activePost(ctx, s.posts, in.PostID)
	if err != nil {
		return err
	}
	if err := authorize(ctx, s.isAdmin, in.ActorID, post.Author, "You can only delete your own posts"); err != nil {
		return err
	}

	if id := imagePublicID(post); id != "" && s.images != nil {
		s.destroy(ctx, "RemovePost", id)
	}

	removed, err := s.posts.SoftDelete(ctx, in.PostID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("post")
	}

	invalidatePost(ctx, s.cache, post)
	s.logger.LogServiceCall(ctx, "PostService", "RemovePost", map[string]any{"post_id": in.PostID.Hex()})
	return nil
}

func (s *PostService) LikePost(ctx context.Context, in LikePostInput) (*models.Post, error) {
	return s.toggleLike(ctx, in, s.posts.Like)
}

func (s *PostService) UnlikePost(ctx context.Context, in LikePostInput) (*models.Post, error) {
	return s.toggleLike(ctx, in, s.posts.Unlike)
}

func (s *PostService) toggleLike(ctx context.Context, in LikePostInput, op func(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.Post, error)) (*models.Post, error) {
	post, err := op(ctx, in.PostID, in.ActorID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("post")
	}
	invalidatePost(ctx, s.cache, post)
	return post, nil
}

func (s *PostService) upload(ctx context.Context, img *storage.ImageUpload) (*storage.UploadResult, error) {
	if err := img.Validate(s.cfg.MaxUploadMB); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, errUploadsUnavailable()
	}
	res, err := s.images.Upload(ctx, img.Reader(), img.Filename)
	if err != nil {
		return nil, models.NewServiceUnavailableError("Image upload failed", err)
	}
	return res, nil
}

// destroy removes a remote image. Failures leave an orphan behind and are only logged.
func (s *PostService) destroy(ctx context.Context, method, publicID string) {
	if s.images == nil {
		return
	}
	if err := s.images.Destroy(ctx, publicID); err != nil {
		s.logger.LogServiceWarning(ctx, "PostService", method, err)
	}
}

func errUploadsUnavailable() error {
	return models.NewServiceUnavailableError("Image uploads are not available", storage.ErrStoreNotConfigured)
}

func imagePublicID(post *models.Post) string {
	if post.ImagePublicID != "" {
		return post.ImagePublicID
	}
	if post.Image != "" {
		return storage.PublicIDFromURL(post.Image)
	}
	return ""
}

func resolveSort(field string) (string, error) {
	if field == "" {
		return "", nil
	}
	resolved, ok := sortableFields[field]
	if !ok {
		const msg = "sort must be one of: createdAt publishedAt title"
		return "", models.NewValidationError(msg, models.FieldError{Field: "sort", Message: msg})
	}
	return resolved, nil
}
