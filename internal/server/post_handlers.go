package server

import (
	"context"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title   string   `json:"title" form:"title"`
	Content string   `json:"content" form:"content"`
	Tags    []string `json:"tags" form:"tags"`
}

type updatePostRequest struct {
	Title   *string  `json:"title" form:"title"`
	Content *string  `json:"content" form:"content"`
	Tags    []string `json:"tags" form:"tags"`
}

// CreatePost handles POST /api/v1/posts
// @Summary Create a post
// @Description Accepts JSON, or multipart with an optional "image" file
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Response{data=models.Post}
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	image, err := formImage(c)
	if err != nil {
		return err
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: middleware.UserID(c),
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		Image:    image,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(models.Created("Post"), post))
}

// FetchPosts handles GET /api/v1/posts
// @Summary List posts
// @Tags posts
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param search query string false "Matches title or content"
// @Param tag query string false "Tag filter"
// @Param sort query string false "createdAt, publishedAt or title"
// @Param order query string false "asc or desc"
// @Success 200 {object} models.Response{data=service.PostPage}
// @Router /posts [get]
func (s *Server) FetchPosts(c *fiber.Ctx) error {
	page, limit := parsePage(c)

	res, err := s.postService.FetchPosts(c.UserContext(), service.ListPostsInput{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
		Sort:   c.Query("sort"),
		Order:  c.Query("order"),
	})
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Fetched("Post"), res))
}

// FindPost handles GET /api/v1/posts/:postId
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [get]
func (s *Server) FindPost(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return err
	}

	post, err := s.postService.FindPost(c.UserContext(), postID)
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Fetched("Post"), post))
}

// UserPosts handles GET /api/v1/users/:userId/posts
// @Summary List my posts
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.Response{data=service.PostPage}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{userId}/posts [get]
func (s *Server) UserPosts(c *fiber.Ctx) error {
	userID, err := parseObjectID(c, "userId")
	if err != nil {
		return err
	}
	page, limit := parsePage(c)

	res, err := s.postService.UserPosts(c.UserContext(), service.UserPostsInput{
		ActorID: middleware.UserID(c),
		UserID:  userID,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Fetched("Post"), res))
}

// UpdatePost handles PATCH /api/v1/posts/:postId
// @Summary Update a post
// @Description Only provided fields change. A new "image" file replaces the old one.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param request body updatePostRequest true "Fields to change"
// @Success 200 {object} models.Response{data=models.Post}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return err
	}

	var req updatePostRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	image, err := formImage(c)
	if err != nil {
		return err
	}

	in := service.UpdatePostInput{
		ActorID: middleware.UserID(c),
		PostID:  postID,
		Title:   req.Title,
		Content: req.Content,
		Image:   image,
	}
	if req.Tags != nil {
		in.Tags = &req.Tags
	}

	post, err := s.postService.UpdatePost(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Updated("Post"), post))
}

// RemovePost handles DELETE /api/v1/posts/:postId
// @Summary Delete a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [delete]
func (s *Server) RemovePost(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return err
	}

	if err := s.postService.RemovePost(c.UserContext(), service.DeletePostInput{
		ActorID: middleware.UserID(c),
		PostID:  postID,
	}); err != nil {
		return err
	}

	return c.JSON(models.Success(models.Deleted("Post"), nil))
}

// LikePost handles POST /api/v1/posts/:postId/like
// @Summary Like a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.toggleLike(c, s.postService.LikePost)
}

// UnlikePost handles DELETE /api/v1/posts/:postId/like
// @Summary Unlike a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.toggleLike(c, s.postService.UnlikePost)
}

func (s *Server) toggleLike(c *fiber.Ctx, op func(ctx context.Context, in service.LikePostInput) (*models.Post, error)) error {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return err
	}

	post, err := op(c.UserContext(), service.LikePostInput{ActorID: middleware.UserID(c), PostID: postID})
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Updated("Post"), post))
}
