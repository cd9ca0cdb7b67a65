package repository

import (
	"context"
	"errors"
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// countedPostDoc is a post document that also carries the `n` key a
// CountDocuments reply is read from, so one batch answers both the page
// fetch and the count regardless of which runs first.
func countedPostDoc(n int32) bson.D {
	return append(postDoc(primitive.NewObjectID(), primitive.NewObjectID(), true), bson.E{Key: "n", Value: n})
}

func storeFailure() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{
		Code:    2,
		Message: "socket was unexpectedly closed: 10.0.3.7:27017",
		Name:    "BadValue",
	})
}

func requireDataAccess(t require.TestingT, err error) {
	require.ErrorIs(t, err, models.ErrDataAccess)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeDataAccess, appErr.Code)
	assert.NotContains(t, appErr.Message, "socket")
	assert.NotContains(t, appErr.Message, "10.0.3.7")
}

func TestRepository_FindWithPagination(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("page and total", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		batch := []bson.D{countedPostDoc(7), countedPostDoc(7)}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch, batch...),
			mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch, batch...),
		)

		res, err := repo.FindWithPagination(ctx, bson.M{"active": true}, PaginationOptions{Page: 3, Limit: 2})
		require.NoError(mt, err)
		require.NotNil(mt, res)

		assert.Len(mt, res.Result, 2)
		assert.LessOrEqual(mt, len(res.Result), res.Pagination.PageSize)
		assert.GreaterOrEqual(mt, res.Pagination.Total, int64(len(res.Result)))
		assert.Equal(mt, int64(7), res.Pagination.Total)
		assert.Equal(mt, 3, res.Pagination.CurrentPage)
		assert.Equal(mt, 2, res.Pagination.PageSize)
		assert.Equal(mt, "Hello", res.Result[0].Title)

		var find bson.Raw
		for _, evt := range mt.GetAllStartedEvents() {
			if evt.CommandName == "find" {
				find = evt.Command
			}
		}
		require.NotNil(mt, find, "page fetch issues a find command")
		limit, ok := find.Lookup("limit").AsInt64OK()
		require.True(mt, ok)
		assert.Equal(mt, int64(2), limit)
		skip, ok := find.Lookup("skip").AsInt64OK()
		require.True(mt, ok)
		assert.Equal(mt, int64(4), skip)
	})

	mt.Run("oversized limit is capped", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		batch := []bson.D{countedPostDoc(1)}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch, batch...),
			mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch, batch...),
		)

		res, err := repo.FindWithPagination(ctx, nil, PaginationOptions{Limit: 10_000})
		require.NoError(mt, err)
		assert.Equal(mt, MaxLimit, res.Pagination.PageSize)
		assert.LessOrEqual(mt, len(res.Result), MaxLimit)
	})

	mt.Run("store failure is a data access error", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(storeFailure(), storeFailure())

		res, err := repo.FindWithPagination(ctx, bson.M{}, PaginationOptions{})
		assert.Nil(mt, res)
		requireDataAccess(mt, err)
	})
}

func TestRepository_Find(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("returns every match", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		author := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch,
			postDoc(primitive.NewObjectID(), author, true),
			postDoc(primitive.NewObjectID(), author, true),
		))

		posts, err := repo.Find(ctx, bson.M{"author": author}, FindOptions{})
		require.NoError(mt, err)
		require.Len(mt, posts, 2)
		assert.Equal(mt, author, posts[1].Author)
	})

	mt.Run("no match is an empty slice", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch))

		posts, err := repo.Find(ctx, bson.M{}, FindOptions{})
		require.NoError(mt, err)
		assert.NotNil(mt, posts)
		assert.Empty(mt, posts)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(storeFailure())

		_, err := repo.Find(ctx, bson.M{}, FindOptions{})
		requireDataAccess(mt, err)
	})
}

func TestRepository_Count(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("reads the count", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		n, err := repo.Count(ctx, bson.M{"active": true})
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(storeFailure())

		_, err := repo.Count(ctx, bson.M{})
		requireDataAccess(mt, err)
	})
}

func TestRepository_InsertMany(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("returns stored documents", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		author := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
			mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch,
				postDoc(primitive.NewObjectID(), author, true),
				postDoc(primitive.NewObjectID(), author, true),
			),
		)

		docs := []models.Post{
			{Title: "One", Content: "a", Author: author},
			{Title: "Two", Content: "b", Author: author},
		}
		out, err := repo.InsertMany(ctx, docs)
		require.NoError(mt, err)
		assert.Len(mt, out, 2)
	})

	mt.Run("empty batch skips the store", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")

		out, err := repo.InsertMany(ctx, nil)
		require.NoError(mt, err)
		assert.Empty(mt, out)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})

	mt.Run("invalid document fails before the write", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")

		_, err := repo.InsertMany(ctx, []models.Post{{Content: "no title", Author: primitive.NewObjectID()}})
		var appErr *models.AppError
		require.True(mt, errors.As(err, &appErr))
		assert.Equal(mt, models.CodeValidation, appErr.Code)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})

	mt.Run("duplicate key is a conflict", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		_, err := repo.InsertMany(ctx, []models.Post{{Title: "One", Content: "a", Author: primitive.NewObjectID()}})
		var appErr *models.AppError
		require.True(mt, errors.As(err, &appErr))
		assert.Equal(mt, models.CodeConflict, appErr.Code)
	})
}

func TestRepository_Aggregate(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()
	pipeline := mongo.Pipeline{{{Key: "$unwind", Value: "$tags"}}}

	mt.Run("returns raw documents", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quill.posts", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "go"}, {Key: "count", Value: int32(4)}},
		))

		out, err := repo.Aggregate(ctx, pipeline)
		require.NoError(mt, err)
		require.Len(mt, out, 1)
		assert.Equal(mt, "go", out[0]["_id"])
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		mt.AddMockResponses(storeFailure())

		_, err := repo.Aggregate(ctx, pipeline)
		requireDataAccess(mt, err)
	})
}

func TestRepository_UpdateValidatesSet(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("blank title is rejected", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")

		post, err := repo.Update(ctx, bson.M{"_id": primitive.NewObjectID()}, bson.M{"$set": bson.M{"title": ""}})
		assert.Nil(mt, post)
		var appErr *models.AppError
		require.True(mt, errors.As(err, &appErr))
		assert.Equal(mt, models.CodeValidation, appErr.Code)
		assert.Equal(mt, "title is required", appErr.Message)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})

	mt.Run("unknown keys are not validated", func(mt *mtest.T) {
		repo := NewRepository[models.Post](mt.Coll, "post")
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: postDoc(id, primitive.NewObjectID(), true)}})

		post, err := repo.Update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"views": 1}})
		require.NoError(mt, err)
		require.NotNil(mt, post)
		assert.Equal(mt, id, post.ID)
	})
}
