package server

import (
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type commentRequest struct {
	Comment string `json:"comment"`
}

// commentPath holds the ids shared by every /posts/:postId/comments/:commentId route.
type commentPath struct {
	postID    primitive.ObjectID
	commentID primitive.ObjectID
}

func parseCommentPath(c *fiber.Ctx) (commentPath, error) {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return commentPath{}, err
	}
	commentID, err := parseObjectID(c, "commentId")
	if err != nil {
		return commentPath{}, err
	}
	return commentPath{postID: postID, commentID: commentID}, nil
}

// PostComment handles POST /api/v1/posts/:postId/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.Response{data=models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /posts/{postId}/comments [post]
func (s *Server) PostComment(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return err
	}
	var req commentRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	comment, err := s.commentService.PostComment(c.UserContext(), service.CreateCommentInput{
		ActorID: middleware.UserID(c),
		PostID:  postID,
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(models.Created("Comment"), comment))
}

// FetchPostComments handles GET /api/v1/posts/:postId/comments
// @Summary List comments of a post
// @Tags comments
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments [get]
func (s *Server) FetchPostComments(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "postId")
	if err != nil {
		return err
	}

	comments, err := s.commentService.FetchPostComments(c.UserContext(), postID)
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Fetched("Comment"), comments))
}

// FindPostComment handles GET /api/v1/posts/:postId/comments/:commentId
// @Summary Get a comment
// @Tags comments
// @Produce json
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Response{data=models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments/{commentId} [get]
func (s *Server) FindPostComment(c *fiber.Ctx) error {
	path, err := parseCommentPath(c)
	if err != nil {
		return err
	}

	comment, err := s.commentService.FindPostComment(c.UserContext(), path.postID, path.commentID)
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Fetched("Comment"), comment))
}

// UpdatePostComment handles PATCH /api/v1/posts/:postId/comments/:commentId
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Param request body commentRequest true "Comment"
// @Success 200 {object} models.Response{data=models.Comment}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments/{commentId} [patch]
func (s *Server) UpdatePostComment(c *fiber.Ctx) error {
	path, err := parseCommentPath(c)
	if err != nil {
		return err
	}
	var req commentRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	comment, err := s.commentService.UpdatePostComment(c.UserContext(), service.UpdateCommentInput{
		ActorID:   middleware.UserID(c),
		PostID:    path.postID,
		CommentID: path.commentID,
		Comment:   req.Comment,
	})
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Updated("Comment"), comment))
}

// RemovePostComment handles DELETE /api/v1/posts/:postId/comments/:commentId
// @Summary Delete a comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Response{data=models.Comment}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments/{commentId} [delete]
func (s *Server) RemovePostComment(c *fiber.Ctx) error {
	path, err := parseCommentPath(c)
	if err != nil {
		return err
	}

	comment, err := s.commentService.RemovePostComment(c.UserContext(), service.DeleteCommentInput{
		ActorID:   middleware.UserID(c),
		PostID:    path.postID,
		CommentID: path.commentID,
	})
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Deleted("Comment"), comment))
}

// PostReply handles POST /api/v1/posts/:postId/comments/:commentId/replies
// @Summary Reply to a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Param request body commentRequest true "Reply"
// @Success 201 {object} models.Response{data=models.Reply}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments/{commentId}/replies [post]
func (s *Server) PostReply(c *fiber.Ctx) error {
	path, err := parseCommentPath(c)
	if err != nil {
		return err
	}
	var req commentRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	reply, err := s.commentService.PostReply(c.UserContext(), service.CreateReplyInput{
		ActorID:   middleware.UserID(c),
		PostID:    path.postID,
		CommentID: path.commentID,
		Comment:   req.Comment,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(models.Created("Reply"), reply))
}

// RemoveReply handles DELETE /api/v1/posts/:postId/comments/:commentId/replies/:replyId
// @Summary Delete a reply
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Param replyId path string true "Reply ID"
// @Success 200 {object} models.Response{data=models.Reply}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments/{commentId}/replies/{replyId} [delete]
func (s *Server) RemoveReply(c *fiber.Ctx) error {
	path, err := parseCommentPath(c)
	if err != nil {
		return err
	}
	replyID, err := parseObjectID(c, "replyId")
	if err != nil {
		return err
	}

	reply, err := s.commentService.RemoveReply(c.UserContext(), service.DeleteReplyInput{
		ActorID:   middleware.UserID(c),
		PostID:    path.postID,
		CommentID: path.commentID,
		ReplyID:   replyID,
	})
	if err != nil {
		return err
	}

	return c.JSON(models.Success(models.Deleted("Reply"), reply))
}
