package repository

import (
	"context"
	"time"

	"quill/internal/database"
	"quill/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuthorPopulate resolves Post.Author into Post.AuthorProfile.
var AuthorPopulate = Populate{
	Field:  "author",
	From:   database.UsersCollection,
	As:     "authorProfile",
	Select: []string{"fullName", "email"},
}

// PostRepository defines the interface for post data operations.
// Every read and write is restricted to active posts; methods that return a
// *models.Post return nil when no active post matched.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	ListActive(ctx context.Context, filter bson.M, opts PaginationOptions) (*PaginatedResult[models.Post], error)
	ListByAuthor(ctx context.Context, authorID primitive.ObjectID, opts PaginationOptions) (*PaginatedResult[models.Post], error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Post, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID) (bool, error)
	Like(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error)
	Unlike(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error)

	AddComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) (*models.Post, error)
	UpdateComment(ctx context.Context, id, commentID primitive.ObjectID, text string, editedAt time.Time) (*models.Post, error)
	RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) (*models.Post, error)
	AddReply(ctx context.Context, id, commentID primitive.ObjectID, reply models.Reply) (*models.Post, error)
	RemoveReply(ctx context.Context, id, commentID, replyID primitive.ObjectID) (*models.Post, error)
}

type postRepository struct {
	base *Repository[models.Post]
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{
		base: NewRepository[models.Post](db.Collection(database.PostsCollection), "post"),
	}
}

func activeByID(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "active": true}
}

func withComment(id, commentID primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "active": true, "comments._id": commentID}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	post.ID = primitive.NilObjectID
	return r.base.Create(ctx, post)
}

func (r *postRepository) FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return r.base.FindOne(ctx, activeByID(id), FindOptions{})
}

// ListActive pages through active posts matching filter, newest first unless
// opts asks otherwise, with the author resolved.
func (r *postRepository) ListActive(ctx context.Context, filter bson.M, opts PaginationOptions) (*PaginatedResult[models.Post], error) {
	merged := bson.M{}
	for k, v := range filter {
		merged[k] = v
	}
	merged["active"] = true

	if opts.SortField == "" && opts.SortOrder == "" {
		opts.SortField = "createdAt"
		opts.SortOrder = "desc"
	}
	if len(opts.Populate) == 0 {
		opts.Populate = []Populate{AuthorPopulate}
	}
	return r.base.FindWithPagination(ctx, merged, opts)
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, opts PaginationOptions) (*PaginatedResult[models.Post], error) {
	return r.ListActive(ctx, bson.M{"author": authorID}, opts)
}

func (r *postRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Post, error) {
	return r.base.Update(ctx, activeByID(id), bson.M{"$set": set})
}

// SoftDelete marks the post inactive. It reports false when no active post matched.
func (r *postRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	post, err := r.base.Update(ctx, activeByID(id), bson.M{"$set": bson.M{"active": false}})
	return post != nil, err
}

func (r *postRepository) Like(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error) {
	return r.base.Update(ctx, activeByID(id), bson.M{"$addToSet": bson.M{"likes": userID}})
}

func (r *postRepository) Unlike(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error) {
	return r.base.Update(ctx, activeByID(id), bson.M{"$pull": bson.M{"likes": userID}})
}

func (r *postRepository) AddComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	return r.base.Update(ctx, activeByID(id), bson.M{"$push": bson.M{"comments": comment}})
}

func (r *postRepository) UpdateComment(ctx context.Context, id, commentID primitive.ObjectID, text string, editedAt time.Time) (*models.Post, error) {
	return r.base.UpdateWithArrayFilters(ctx, withComment(id, commentID),
		bson.M{"$set": bson.M{
			"comments.$[c].comment":  text,
			"comments.$[c].editedAt": editedAt,
		}},
		bson.M{"c._id": commentID},
	)
}

func (r *postRepository) RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) (*models.Post, error) {
	return r.base.Update(ctx, withComment(id, commentID), bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}})
}

func (r *postRepository) AddReply(ctx context.Context, id, commentID primitive.ObjectID, reply models.Reply) (*models.Post, error) {
	return r.base.UpdateWithArrayFilters(ctx, withComment(id, commentID),
		bson.M{"$push": bson.M{"comments.$[c].replies": reply}},
		bson.M{"c._id": commentID},
	)
}

func (r *postRepository) RemoveReply(ctx context.Context, id, commentID, replyID primitive.ObjectID) (*models.Post, error) {
	filter := withComment(id, commentID)
	filter["comments.replies._id"] = replyID
	return r.base.UpdateWithArrayFilters(ctx, filter,
		bson.M{"$pull": bson.M{"comments.$[c].replies": bson.M{"_id": replyID}}},
		bson.M{"c._id": commentID},
	)
}
