package service

import (
	"context"
	"strings"
	"time"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentService manages the comments and replies embedded in posts. Every
// mutation is a single atomic update of the parent post.
type CommentService struct {
	posts   repository.PostRepository
	cache   *cache.Cache
	isAdmin AdminCheck
	now     func() time.Time
}

type CreateCommentInput struct {
	ActorID primitive.ObjectID `json:"-"`
	PostID  primitive.ObjectID `json:"-"`
	Comment string             `json:"comment" validate:"required,max=10000"`
}

type UpdateCommentInput struct {
	ActorID   primitive.ObjectID `json:"-"`
	PostID    primitive.ObjectID `json:"-"`
	CommentID primitive.ObjectID `json:"-"`
	Comment   string             `json:"comment" validate:"required,max=10000"`
}

type DeleteCommentInput struct {
	ActorID   primitive.ObjectID
	PostID    primitive.ObjectID
	CommentID primitive.ObjectID
}

type CreateReplyInput struct {
	ActorID   primitive.ObjectID `json:"-"`
	PostID    primitive.ObjectID `json:"-"`
	CommentID primitive.ObjectID `json:"-"`
	Comment   string             `json:"comment" validate:"required,max=10000"`
}

type DeleteReplyInput struct {
	ActorID   primitive.ObjectID
	PostID    primitive.ObjectID
	CommentID primitive.ObjectID
	ReplyID   primitive.ObjectID
}

func NewCommentService(posts repository.PostRepository, c *cache.Cache, isAdmin AdminCheck) *CommentService {
	return &CommentService{
		posts:   posts,
		cache:   c,
		isAdmin: isAdmin,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *CommentService) PostComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	comment := models.NewComment(in.ActorID, in.Comment, s.now())
	post, err := s.posts.AddComment(ctx, in.PostID, comment)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("post")
	}

	invalidatePost(ctx, s.cache, post)
	if stored := post.FindComment(comment.ID); stored != nil {
		return stored, nil
	}
	return &comment, nil
}

func (s *CommentService) FetchPostComments(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	post, err := cachedPost(ctx, s.cache, s.posts, postID)
	if err != nil {
		return nil, err
	}
	if post.Comments == nil {
		return []models.Comment{}, nil
	}
	return post.Comments, nil
}

func (s *CommentService) FindPostComment(ctx context.Context, postID, commentID primitive.ObjectID) (*models.Comment, error) {
	post, err := cachedPost(ctx, s.cache, s.posts, postID)
	if err != nil {
		return nil, err
	}
	comment := post.FindComment(commentID)
	if comment == nil {
		return nil, models.NewNotFoundError("comment")
	}
	return comment, nil
}

func (s *CommentService) UpdatePostComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	_, comment, err := s.locateComment(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, s.isAdmin, in.ActorID, comment.User, "You can only update your own comments"); err != nil {
		return nil, err
	}

	post, err := s.posts.UpdateComment(ctx, in.PostID, in.CommentID, in.Comment, s.now())
	if err != nil {
		return nil, err
	}
	updated := findComment(post, in.CommentID)
	if updated == nil {
		return nil, models.NewNotFoundError("comment")
	}

	invalidatePost(ctx, s.cache, post)
	return updated, nil
}

// RemovePostComment deletes a comment and its replies, returning what was removed.
func (s *CommentService) RemovePostComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	_, comment, err := s.locateComment(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, s.isAdmin, in.ActorID, comment.User, "You can only delete your own comments"); err != nil {
		return nil, err
	}

	post, err := s.posts.RemoveComment(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("comment")
	}

	invalidatePost(ctx, s.cache, post)
	return comment, nil
}

func (s *CommentService) PostReply(ctx context.Context, in CreateReplyInput) (*models.Reply, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, _, err := s.locateComment(ctx, in.PostID, in.CommentID); err != nil {
		return nil, err
	}

	reply := models.NewReply(in.ActorID, in.Comment, s.now())
	post, err := s.posts.AddReply(ctx, in.PostID, in.CommentID, reply)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("comment")
	}

	invalidatePost(ctx, s.cache, post)
	return &reply, nil
}

func (s *CommentService) RemoveReply(ctx context.Context, in DeleteReplyInput) (*models.Reply, error) {
	_, comment, err := s.locateComment(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	reply := comment.FindReply(in.ReplyID)
	if reply == nil {
		return nil, models.NewNotFoundError("reply")
	}
	if err := authorize(ctx, s.isAdmin, in.ActorID, reply.User, "You can only delete your own replies"); err != nil {
		return nil, err
	}

	post, err := s.posts.RemoveReply(ctx, in.PostID, in.CommentID, in.ReplyID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("reply")
	}

	invalidatePost(ctx, s.cache, post)
	return reply, nil
}

// locateComment loads the active post from the store and finds the comment in it.
func (s *CommentService) locateComment(ctx context.Context, postID, commentID primitive.ObjectID) (*models.Post, *models.Comment, error) {
	post, err := activePost(ctx, s.posts, postID)
	if err != nil {
		return nil, nil, err
	}
	comment := post.FindComment(commentID)
	if comment == nil {
		return nil, nil, models.NewNotFoundError("comment")
	}
	return post, comment, nil
}

func findComment(post *models.Post, id primitive.ObjectID) *models.Comment {
	if post == nil {
		return nil
	}
	return post.FindComment(id)
}
