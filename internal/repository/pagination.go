package repository

import (
	"math"
	"regexp"
	"slices"

	"quill/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 200

	// MaxPage keeps (page-1)*limit inside int64.
	MaxPage = math.MaxInt / MaxLimit
)

// Populate resolves a reference field into the documents it points at.
type Populate struct {
	// Field holds the reference (an ObjectID, or a slice of them when Many is set).
	Field string
	// From is the collection the references point into.
	From string
	// As is where the resolved document(s) are written. Defaults to Field.
	As string
	// Select limits the fields copied from the referenced documents.
	Select []string
	Many   bool
}

// PaginationOptions are the knobs of FindWithPagination. They are applied in a
// fixed order: filter, search, sort, projection, omission, population.
type PaginationOptions struct {
	Page  int
	Limit int

	// Search is matched case-insensitively as a substring of every field in Conditions.
	Search     string
	Conditions []string

	// SortField defaults to _id when SortOrder is set. SortOrder "asc" sorts
	// ascending; anything else sorts descending.
	SortField string
	SortOrder string

	Projection        []string
	ExcludeProjection bool
	OmitFields        []string

	Populate []Populate

	IncludeSensitive bool
}

// PaginatedResult is a single page of T and its position in the full result set.
type PaginatedResult[T any] struct {
	Result     []T               `json:"result"`
	Pagination models.Pagination `json:"pagination"`
}

// Normalize returns the effective page, limit and skip.
// page <= 0 becomes 1 and is capped at MaxPage; limit <= 0 becomes 20 and is
// capped at 200.
func (o PaginationOptions) Normalize() (page, limit int, skip int64) {
	page = o.Page
	if page <= 0 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit = o.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, int64(page-1) * int64(limit)
}

// searchFilter ANDs filter with an OR of case-insensitive regexes over the
// condition fields. It returns filter untouched when there is nothing to search.
func searchFilter(filter bson.M, search string, conditions []string) bson.M {
	if filter == nil {
		filter = bson.M{}
	}
	if search == "" || len(conditions) == 0 {
		return filter
	}

	pattern := regexp.QuoteMeta(search)
	or := make(bson.A, 0, len(conditions))
	for _, field := range conditions {
		or = append(or, bson.M{field: bson.M{"$regex": pattern, "$options": "i"}})
	}

	if len(filter) == 0 {
		return bson.M{"$or": or}
	}
	return bson.M{"$and": bson.A{filter, bson.M{"$or": or}}}
}

// sortSpec returns nil when no sort was requested.
func sortSpec(field, order string) bson.D {
	if field == "" && order == "" {
		return nil
	}
	if field == "" {
		field = "_id"
	}
	direction := -1
	if order == "asc" {
		direction = 1
	}
	return bson.D{{Key: field, Value: direction}}
}

// buildProjection merges the caller projection, the omit list and the
// repository's sensitive fields into a single projection document.
// Inclusion projections drop omitted and sensitive fields from the list;
// otherwise they are added as exclusions. nil means "all fields".
func buildProjection(fields []string, exclude bool, omit, sensitive []string, extraInclude []string) bson.D {
	if len(fields) > 0 && !exclude {
		proj := bson.D{}
		for _, f := range fields {
			if slices.Contains(omit, f) || slices.Contains(sensitive, f) {
				continue
			}
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		for _, f := range extraInclude {
			if !slices.Contains(fields, f) {
				proj = append(proj, bson.E{Key: f, Value: 1})
			}
		}
		if len(proj) == 0 {
			proj = bson.D{{Key: "_id", Value: 1}}
		}
		return proj
	}

	var excluded []string
	if exclude {
		excluded = append(excluded, fields...)
	}
	excluded = append(excluded, omit...)
	excluded = append(excluded, sensitive...)

	var proj bson.D
	for _, f := range excluded {
		if slices.ContainsFunc(proj, func(e bson.E) bool { return e.Key == f }) {
			continue
		}
		proj = append(proj, bson.E{Key: f, Value: 0})
	}
	return proj
}

// lookupStages expands one Populate into $lookup (and $unwind for single references).
func lookupStages(p Populate) []bson.D {
	as := p.As
	if as == "" {
		as = p.Field
	}

	match := bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$ref"}}}
	if p.Many {
		match = bson.M{"$expr": bson.M{"$in": bson.A{"$_id", bson.M{"$ifNull": bson.A{"$$ref", bson.A{}}}}}}
	}

	pipeline := bson.A{bson.D{{Key: "$match", Value: match}}}
	if len(p.Select) > 0 {
		sel := bson.D{}
		for _, f := range p.Select {
			sel = append(sel, bson.E{Key: f, Value: 1})
		}
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: sel}})
	}

	stages := []bson.D{{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: p.From},
		{Key: "let", Value: bson.D{{Key: "ref", Value: "$" + p.Field}}},
		{Key: "pipeline", Value: pipeline},
		{Key: "as", Value: as},
	}}}}

	if !p.Many {
		stages = append(stages, bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + as},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}})
	}
	return stages
}

// paginationPipeline builds the aggregation used when population is requested.
func paginationPipeline(filter bson.M, sort, projection bson.D, skip int64, limit int, populate []Populate) mongo.Pipeline {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	if sort != nil {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$skip", Value: skip}},
		bson.D{{Key: "$limit", Value: int64(limit)}},
	)
	for _, p := range populate {
		pipeline = append(pipeline, lookupStages(p)...)
	}
	if len(projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: projection}})
	}
	return pipeline
}

func populatedFields(populate []Populate) []string {
	out := make([]string, 0, len(populate))
	for _, p := range populate {
		if p.As != "" {
			out = append(out, p.As)
		} else {
			out = append(out, p.Field)
		}
	}
	return out
}
