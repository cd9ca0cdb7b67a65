// Package repository provides data access over MongoDB collections.
package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/validation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// FindOptions shape single-document and list reads.
type FindOptions struct {
	Projection []string
	Sort       bson.D
	// IncludeSensitive returns fields that are excluded by default, such as password.
	IncludeSensitive bool
}

// Repository is a generic CRUD and pagination engine over one collection of T.
// T must be a struct with bson tags and an `_id` field.
type Repository[T any] struct {
	coll      *mongo.Collection
	resource  string
	sensitive []string
	logger    *observability.RepoLogger

	// fieldsByKey maps top-level bson keys to Go field names for partial validation.
	fieldsByKey map[string]string
}

// NewRepository returns a Repository over coll. resource names the entity in
// error messages ("user already exists"). sensitive fields are excluded from
// every read unless FindOptions.IncludeSensitive is set.
func NewRepository[T any](coll *mongo.Collection, resource string, sensitive ...string) *Repository[T] {
	return &Repository[T]{
		coll:        coll,
		resource:    resource,
		sensitive:   sensitive,
		logger:      observability.NewRepoLogger(coll.Name()),
		fieldsByKey: bsonFieldNames[T](),
	}
}

// Collection exposes the underlying collection to typed repositories.
func (r *Repository[T]) Collection() *mongo.Collection {
	return r.coll
}

func (r *Repository[T]) begin(ctx context.Context, op string) (context.Context, func(error) error) {
	ctx, span := observability.StartRepositorySpan(ctx, op, r.coll.Name())
	done := observability.TrackQuery(op, r.coll.Name())
	return ctx, func(err error) error {
		done()
		if err != nil {
			var appErr *models.AppError
			if !errors.As(err, &appErr) {
				r.logger.LogError(ctx, err, op)
				err = models.NewDataAccessError(err)
			}
		}
		observability.EndSpan(span, err)
		return err
	}
}

func (r *Repository[T]) projection(fields []string, includeSensitive bool) bson.D {
	sensitive := r.sensitive
	if includeSensitive {
		sensitive = nil
	}
	return buildProjection(fields, false, nil, sensitive, nil)
}

// Create validates doc and inserts it, returning the stored document.
func (r *Repository[T]) Create(ctx context.Context, doc *T) (*T, error) {
	if err := validation.Struct(doc); err != nil {
		return nil, err
	}

	ctx, end := r.begin(ctx, "create")
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, end(models.NewConflictError(r.resource))
		}
		return nil, end(err)
	}
	r.logger.LogWrite(ctx, "create", map[string]any{"id": res.InsertedID})

	var out T
	err = r.coll.FindOne(ctx, bson.M{"_id": res.InsertedID},
		options.FindOne().SetProjection(r.projection(nil, false))).Decode(&out)
	if err != nil {
		return nil, end(err)
	}
	return &out, end(nil)
}

// FindOne returns the first match or nil when there is none.
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M, opts FindOptions) (*T, error) {
	ctx, end := r.begin(ctx, "find_one")
	findOpts := options.FindOne()
	if proj := r.projection(opts.Projection, opts.IncludeSensitive); len(proj) > 0 {
		findOpts.SetProjection(proj)
	}
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}

	var out T
	err := r.coll.FindOne(ctx, filter, findOpts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, end(nil)
	}
	if err != nil {
		return nil, end(err)
	}
	return &out, end(nil)
}

// FindByID looks a document up by its hex id. Malformed ids match nothing.
func (r *Repository[T]) FindByID(ctx context.Context, id string, opts FindOptions) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.FindOne(ctx, bson.M{"_id": oid}, opts)
}

// Find returns every match. Callers bound the size through the filter.
func (r *Repository[T]) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]T, error) {
	ctx, end := r.begin(ctx, "find")
	findOpts := options.Find()
	if proj := r.projection(opts.Projection, opts.IncludeSensitive); len(proj) > 0 {
		findOpts.SetProjection(proj)
	}
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}

	cursor, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, end(err)
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, end(err)
	}
	return out, end(nil)
}

// Update applies update to the first match and returns the post-update
// document, or nil when nothing matched. Fields written through $set are
// validated against T before the write.
func (r *Repository[T]) Update(ctx context.Context, filter bson.M, update bson.M) (*T, error) {
	if err := r.validateSet(update); err != nil {
		return nil, err
	}

	ctx, end := r.begin(ctx, "update")
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if proj := r.projection(nil, false); len(proj) > 0 {
		opts.SetProjection(proj)
	}
	return r.findOneAndUpdate(ctx, end, filter, update, opts)
}

// UpdateWithArrayFilters is Update for positional $[name] operators.
func (r *Repository[T]) UpdateWithArrayFilters(ctx context.Context, filter, update bson.M, arrayFilters ...any) (*T, error) {
	ctx, end := r.begin(ctx, "update_array")
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
	if proj := r.projection(nil, false); len(proj) > 0 {
		opts.SetProjection(proj)
	}
	return r.findOneAndUpdate(ctx, end, filter, update, opts)
}

func (r *Repository[T]) findOneAndUpdate(ctx context.Context, end func(error) error, filter, update bson.M, opts *options.FindOneAndUpdateOptions) (*T, error) {
	var out T
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, end(nil)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, end(models.NewConflictError(r.resource))
		}
		return nil, end(err)
	}
	r.logger.LogWrite(ctx, "update", map[string]any{"filter": filter})
	return &out, end(nil)
}

// validateSet checks the top-level fields written by a $set against T's rules.
func (r *Repository[T]) validateSet(update bson.M) error {
	set, ok := update["$set"]
	if !ok {
		return nil
	}
	raw, err := bson.Marshal(set)
	if err != nil {
		return models.NewValidationError("invalid update document")
	}

	var keys bson.M
	if err := bson.Unmarshal(raw, &keys); err != nil {
		return models.NewValidationError("invalid update document")
	}
	fields := make([]string, 0, len(keys))
	for k := range keys {
		if name, ok := r.fieldsByKey[k]; ok {
			fields = append(fields, name)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	var partial T
	if err := bson.Unmarshal(raw, &partial); err != nil {
		return models.NewValidationError("invalid update document")
	}
	return validation.StructPartial(&partial, fields...)
}

// DeleteOne reports whether exactly one document was removed.
func (r *Repository[T]) DeleteOne(ctx context.Context, filter bson.M) (bool, error) {
	ctx, end := r.begin(ctx, "delete_one")
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, end(err)
	}
	r.logger.LogWrite(ctx, "delete", map[string]any{"deleted": res.DeletedCount})
	return res.DeletedCount == 1, end(nil)
}

// Count returns the number of matching documents.
func (r *Repository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, end := r.begin(ctx, "count")
	n, err := r.coll.CountDocuments(ctx, filter)
	return n, end(err)
}

// InsertMany validates and inserts docs, returning them as stored.
func (r *Repository[T]) InsertMany(ctx context.Context, docs []T) ([]T, error) {
	if len(docs) == 0 {
		return []T{}, nil
	}
	batch := make([]any, 0, len(docs))
	for i := range docs {
		if err := validation.Struct(&docs[i]); err != nil {
			return nil, err
		}
		batch = append(batch, docs[i])
	}

	ctx, end := r.begin(ctx, "insert_many")
	res, err := r.coll.InsertMany(ctx, batch)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, end(models.NewConflictError(r.resource))
		}
		return nil, end(err)
	}
	r.logger.LogWrite(ctx, "insert_many", map[string]any{"count": len(res.InsertedIDs)})

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": res.InsertedIDs}},
		options.Find().SetProjection(r.projection(nil, false)))
	if err != nil {
		return nil, end(err)
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, end(err)
	}
	return out, end(nil)
}

// Aggregate runs a caller-defined pipeline and returns the raw documents.
func (r *Repository[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	ctx, end := r.begin(ctx, "aggregate")
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, end(err)
	}
	out := []bson.M{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, end(err)
	}
	return out, end(nil)
}

// FindWithPagination returns one page of matches and the total match count.
// The count runs concurrently with the page fetch against the same filter.
// Any store failure is logged and returned as models.ErrDataAccess.
func (r *Repository[T]) FindWithPagination(ctx context.Context, filter bson.M, opts PaginationOptions) (*PaginatedResult[T], error) {
	page, limit, skip := opts.Normalize()
	filter = searchFilter(filter, opts.Search, opts.Conditions)
	sort := sortSpec(opts.SortField, opts.SortOrder)

	sensitive := r.sensitive
	if opts.IncludeSensitive {
		sensitive = nil
	}
	projection := buildProjection(opts.Projection, opts.ExcludeProjection, opts.OmitFields, sensitive, populatedFields(opts.Populate))

	ctx, end := r.begin(ctx, "find_with_pagination")

	result := []T{}
	var total int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var cursor *mongo.Cursor
		var err error
		if len(opts.Populate) > 0 {
			cursor, err = r.coll.Aggregate(gctx, paginationPipeline(filter, sort, projection, skip, limit, opts.Populate))
		} else {
			findOpts := options.Find().SetSkip(skip).SetLimit(int64(limit))
			if sort != nil {
				findOpts.SetSort(sort)
			}
			if len(projection) > 0 {
				findOpts.SetProjection(projection)
			}
			cursor, err = r.coll.Find(gctx, filter, findOpts)
		}
		if err != nil {
			return err
		}
		return cursor.All(gctx, &result)
	})
	g.Go(func() error {
		var err error
		total, err = r.coll.CountDocuments(gctx, filter)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, end(err)
	}

	return &PaginatedResult[T]{
		Result: result,
		Pagination: models.Pagination{
			Total:       total,
			CurrentPage: page,
			PageSize:    limit,
		},
	}, end(nil)
}

var fieldNameCache sync.Map

// bsonFieldNames maps each top-level bson key of T to its Go field name.
func bsonFieldNames[T any]() map[string]string {
	typ := reflect.TypeFor[T]()
	if cached, ok := fieldNameCache.Load(typ); ok {
		return cached.(map[string]string)
	}
	out := map[string]string{}
	if typ.Kind() == reflect.Struct {
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			key := strings.SplitN(f.Tag.Get("bson"), ",", 2)[0]
			if key == "" {
				key = strings.ToLower(f.Name)
			}
			if key == "-" {
				continue
			}
			out[key] = f.Name
		}
	}
	fieldNameCache.Store(typ, out)
	return out
}
