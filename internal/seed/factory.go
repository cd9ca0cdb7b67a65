// Package seed generates demo users, posts and comments for development
// databases. It is not used by the server at request time.
package seed

import (
	"strings"
	"time"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultPassword is the password every seeded user signs in with.
const DefaultPassword = "password123"

var tagPool = []string{
	"go", "mongodb", "redis", "backend", "devops", "testing",
	"design", "career", "tutorial", "opinion", "release", "performance",
}

// Factory builds unsaved documents filled with fake content.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
	now     func() time.Time
}

// NewFactory returns a Factory. A zero seed draws from the clock.
func NewFactory(seed int64, maxDays int) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays, now: time.Now}
}

// BuildUser returns a user with a unique-looking email. Password is left
// for the caller to hash.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		FullName:  first + " " + last,
		Email:     models.NormalizeEmail(first + "." + last + f.faker.DigitN(4) + "@" + f.faker.DomainName()),
		Role:      models.RoleUser,
		IsActive:  true,
		CreatedAt: f.pastTime(),
	}
	for _, o := range overrides {
		o(user)
	}
	return user
}

// BuildPost returns a post by author with a spread-out publication date.
func (f *Factory) BuildPost(author primitive.ObjectID, overrides ...func(*models.Post)) *models.Post {
	created := f.pastTime()
	post := models.NewPost(author, f.title(), f.faker.Paragraph(2, 4, 12, "\n\n"), f.tags(), created)
	if f.faker.Number(0, 2) == 0 {
		post.Image = "https://picsum.photos/seed/" + f.faker.UUID() + "/800/450"
	}
	for _, o := range overrides {
		o(post)
	}
	return post
}

// BuildComment returns a comment by user written after the post was published.
func (f *Factory) BuildComment(user primitive.ObjectID, after time.Time) models.Comment {
	return models.NewComment(user, f.faker.Sentence(f.faker.Number(4, 18)), f.after(after))
}

// BuildReply returns a reply by user written after the comment.
func (f *Factory) BuildReply(user primitive.ObjectID, after time.Time) models.Reply {
	return models.NewReply(user, f.faker.Sentence(f.faker.Number(3, 10)), f.after(after))
}

func (f *Factory) title() string {
	t := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	if f.faker.Bool() {
		t = f.faker.HipsterWord() + ": " + t
	}
	return t
}

func (f *Factory) tags() []string {
	pool := append([]string(nil), tagPool...)
	f.faker.ShuffleStrings(pool)
	return pool[:f.faker.Number(0, 3)]
}

func (f *Factory) pastTime() time.Time {
	now := f.now()
	return f.faker.DateRange(now.AddDate(0, 0, -f.maxDays), now).UTC()
}

func (f *Factory) after(t time.Time) time.Time {
	now := f.now()
	if !t.Before(now) {
		return now.UTC()
	}
	return f.faker.DateRange(t, now).UTC()
}
