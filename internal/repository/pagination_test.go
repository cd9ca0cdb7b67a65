package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestPaginationOptions_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        PaginationOptions
		page, limit int
		skip        int64
	}{
		{name: "defaults", opts: PaginationOptions{}, page: 1, limit: 20, skip: 0},
		{name: "negative values", opts: PaginationOptions{Page: -3, Limit: -1}, page: 1, limit: 20, skip: 0},
		{name: "third page", opts: PaginationOptions{Page: 3, Limit: 10}, page: 3, limit: 10, skip: 20},
		{name: "limit capped", opts: PaginationOptions{Page: 2, Limit: 5000}, page: 2, limit: 200, skip: 200},
		{name: "page capped", opts: PaginationOptions{Page: math.MaxInt64 / 100, Limit: 200}, page: MaxPage, limit: 200, skip: int64(MaxPage-1) * 200},
		{name: "max int page", opts: PaginationOptions{Page: math.MaxInt, Limit: 1}, page: MaxPage, limit: 1, skip: int64(MaxPage - 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page, limit, skip := tt.opts.Normalize()
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.skip, skip)
		})
	}
}

func TestSearchFilter(t *testing.T) {
	t.Parallel()

	t.Run("no search leaves filter untouched", func(t *testing.T) {
		t.Parallel()
		filter := bson.M{"active": true}
		assert.Equal(t, filter, searchFilter(filter, "", []string{"title"}))
		assert.Equal(t, filter, searchFilter(filter, "go", nil))
	})

	t.Run("nil filter becomes empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, bson.M{}, searchFilter(nil, "", nil))
	})

	t.Run("search merges with and", func(t *testing.T) {
		t.Parallel()
		got := searchFilter(bson.M{"active": true}, "a.b", []string{"title", "content"})

		and, ok := got["$and"].(bson.A)
		require.True(t, ok)
		require.Len(t, and, 2)
		assert.Equal(t, bson.M{"active": true}, and[0])

		or := and[1].(bson.M)["$or"].(bson.A)
		require.Len(t, or, 2)
		assert.Equal(t, bson.M{"title": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[0])
		assert.Equal(t, bson.M{"content": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[1])
	})

	t.Run("empty filter uses or alone", func(t *testing.T) {
		t.Parallel()
		got := searchFilter(bson.M{}, "go", []string{"title"})
		assert.NotContains(t, got, "$and")
		assert.Contains(t, got, "$or")
	})
}

func TestSortSpec(t *testing.T) {
	t.Parallel()

	assert.Nil(t, sortSpec("", ""))
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, sortSpec("", "desc"))
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}}, sortSpec("createdAt", "asc"))
	assert.Equal(t, bson.D{{Key: "title", Value: -1}}, sortSpec("title", ""))
}

func TestBuildProjection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fields    []string
		exclude   bool
		omit      []string
		sensitive []string
		extra     []string
		want      bson.D
	}{
		{
			name: "nothing requested",
			want: nil,
		},
		{
			name:      "sensitive fields excluded by default",
			sensitive: []string{"password"},
			want:      bson.D{{Key: "password", Value: 0}},
		},
		{
			name:   "inclusion drops omitted fields",
			fields: []string{"title", "content", "tags"},
			omit:   []string{"content"},
			want:   bson.D{{Key: "title", Value: 1}, {Key: "tags", Value: 1}},
		},
		{
			name:      "inclusion never returns sensitive fields",
			fields:    []string{"email", "password"},
			sensitive: []string{"password"},
			want:      bson.D{{Key: "email", Value: 1}},
		},
		{
			name:   "fully omitted inclusion keeps id",
			fields: []string{"title"},
			omit:   []string{"title"},
			want:   bson.D{{Key: "_id", Value: 1}},
		},
		{
			name:    "exclusion merges omit without duplicates",
			fields:  []string{"comments", "likes"},
			exclude: true,
			omit:    []string{"likes", "tags"},
			want:    bson.D{{Key: "comments", Value: 0}, {Key: "likes", Value: 0}, {Key: "tags", Value: 0}},
		},
		{
			name:   "populated fields survive an inclusion projection",
			fields: []string{"title"},
			extra:  []string{"authorProfile"},
			want:   bson.D{{Key: "title", Value: 1}, {Key: "authorProfile", Value: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buildProjection(tt.fields, tt.exclude, tt.omit, tt.sensitive, tt.extra)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupStages(t *testing.T) {
	t.Parallel()

	t.Run("single reference unwinds", func(t *testing.T) {
		t.Parallel()
		stages := lookupStages(AuthorPopulate)
		require.Len(t, stages, 2)
		assert.Equal(t, "$lookup", stages[0][0].Key)
		assert.Equal(t, "$unwind", stages[1][0].Key)

		lookup := stages[0][0].Value.(bson.D)
		assert.Equal(t, bson.E{Key: "from", Value: "users"}, lookup[0])
		assert.Equal(t, bson.E{Key: "as", Value: "authorProfile"}, lookup[3])

		pipeline := lookup[2].Value.(bson.A)
		require.Len(t, pipeline, 2, "match plus select projection")
	})

	t.Run("many reference stays an array", func(t *testing.T) {
		t.Parallel()
		stages := lookupStages(Populate{Field: "likes", From: "users", Many: true})
		require.Len(t, stages, 1)
		lookup := stages[0][0].Value.(bson.D)
		assert.Equal(t, bson.E{Key: "as", Value: "likes"}, lookup[3])
	})
}

func TestPaginationPipeline_Order(t *testing.T) {
	t.Parallel()

	pipeline := paginationPipeline(
		bson.M{"active": true},
		bson.D{{Key: "createdAt", Value: -1}},
		bson.D{{Key: "comments", Value: 0}},
		40, 20,
		[]Populate{AuthorPopulate},
	)

	var keys []string
	for _, stage := range pipeline {
		keys = append(keys, stage[0].Key)
	}
	assert.Equal(t, []string{"$match", "$sort", "$skip", "$limit", "$lookup", "$unwind", "$project"}, keys)
	assert.Equal(t, int64(40), pipeline[2][0].Value)
	assert.Equal(t, int64(20), pipeline[3][0].Value)
}

func TestPaginationPipeline_NoSortNoProjection(t *testing.T) {
	t.Parallel()

	pipeline := paginationPipeline(bson.M{}, nil, nil, 0, 10, nil)
	require.Len(t, pipeline, 3)
	assert.Equal(t, "$match", pipeline[0][0].Key)
	assert.Equal(t, "$skip", pipeline[1][0].Key)
	assert.Equal(t, "$limit", pipeline[2][0].Key)
}

func TestPopulatedFields(t *testing.T) {
	t.Parallel()
	got := populatedFields([]Populate{AuthorPopulate, {Field: "likes", From: "users", Many: true}})
	assert.Equal(t, []string{"authorProfile", "likes"}, got)
}
