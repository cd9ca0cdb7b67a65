package seed

import (
	"context"
	"fmt"
	"log"
	"sync"

	"quill/internal/database"
	"quill/internal/models"
	"quill/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// Hasher hashes the shared demo password.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Options controls how much data a run produces.
type Options struct {
	Users                int
	PostsPerUser         int
	MaxCommentsPerPost   int
	MaxRepliesPerComment int
	MaxDays              int
	// Seed makes a run reproducible. Zero draws from the clock.
	Seed        int64
	Concurrency int
}

// DefaultOptions is a small dataset suitable for a local database.
func DefaultOptions() Options {
	return Options{
		Users:                10,
		PostsPerUser:         5,
		MaxCommentsPerPost:   4,
		MaxRepliesPerComment: 2,
		MaxDays:              90,
		Concurrency:          4,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Replies  int
	Likes    int
}

// Seeder writes fake data through the repositories so indexes and defaults
// apply exactly as they do for API traffic.
type Seeder struct {
	users   repository.UserRepository
	posts   repository.PostRepository
	hasher  Hasher
	factory *Factory
	opts    Options

	mu      sync.Mutex
	summary Summary
}

func NewSeeder(users repository.UserRepository, posts repository.PostRepository, hasher Hasher, opts Options) *Seeder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Seeder{
		users:   users,
		posts:   posts,
		hasher:  hasher,
		factory: NewFactory(opts.Seed, opts.MaxDays),
		opts:    opts,
	}
}

// Run creates users, then their posts with comments, replies and likes.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	s.summary = Summary{}

	users, err := s.SeedUsers(ctx)
	if err != nil {
		return s.summary, err
	}
	if len(users) == 0 {
		return s.summary, nil
	}

	posts := make([]*models.Post, 0, len(users)*s.opts.PostsPerUser)
	for _, author := range users {
		for range s.opts.PostsPerUser {
			posts = append(posts, s.factory.BuildPost(author.ID))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, post := range posts {
		g.Go(func() error {
			return s.seedPost(gctx, post, users)
		})
	}
	if err := g.Wait(); err != nil {
		return s.summary, err
	}

	log.Printf("Seeded %d users, %d posts, %d comments, %d replies, %d likes",
		s.summary.Users, s.summary.Posts, s.summary.Comments, s.summary.Replies, s.summary.Likes)
	return s.summary, nil
}

// SeedUsers creates opts.Users users sharing DefaultPassword.
func (s *Seeder) SeedUsers(ctx context.Context) ([]*models.User, error) {
	hash, err := s.hasher.Hash(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	users := make([]*models.User, 0, s.opts.Users)
	for range s.opts.Users {
		u := s.factory.BuildUser(func(u *models.User) { u.Password = hash })
		created, err := s.users.Create(ctx, u)
		if err != nil {
			return users, fmt.Errorf("create user %s: %w", u.Email, err)
		}
		users = append(users, created)
	}
	s.count(func(sum *Summary) { sum.Users += len(users) })
	return users, nil
}

// seedPost stores post and decorates it with activity from other users.
func (s *Seeder) seedPost(ctx context.Context, post *models.Post, users []*models.User) error {
	created, err := s.posts.Create(ctx, post)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	s.count(func(sum *Summary) { sum.Posts++ })

	comments, likers := s.activity(created, users)
	for _, a := range comments {
		if _, err := s.posts.AddComment(ctx, created.ID, a.comment); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		for _, r := range a.replies {
			if _, err := s.posts.AddReply(ctx, created.ID, a.comment.ID, r); err != nil {
				return fmt.Errorf("add reply: %w", err)
			}
		}
		s.count(func(sum *Summary) {
			sum.Comments++
			sum.Replies += len(a.replies)
		})
	}
	for _, u := range likers {
		if _, err := s.posts.Like(ctx, created.ID, u.ID); err != nil {
			return fmt.Errorf("like post: %w", err)
		}
		s.count(func(sum *Summary) { sum.Likes++ })
	}
	return nil
}

type thread struct {
	comment models.Comment
	replies []models.Reply
}

// activity draws comments and likers for post. The factory is not safe for
// concurrent use, so this runs under the lock.
func (s *Seeder) activity(post *models.Post, users []*models.User) ([]thread, []*models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.factory
	threads := make([]thread, f.faker.Number(0, max(s.opts.MaxCommentsPerPost, 0)))
	for i := range threads {
		author := users[f.faker.Number(0, len(users)-1)]
		threads[i].comment = f.BuildComment(author.ID, post.PublishedAt)
		for range f.faker.Number(0, max(s.opts.MaxRepliesPerComment, 0)) {
			replier := users[f.faker.Number(0, len(users)-1)]
			threads[i].replies = append(threads[i].replies, f.BuildReply(replier.ID, threads[i].comment.CreatedAt))
		}
	}

	var likers []*models.User
	for _, u := range users {
		if u.ID != post.Author && f.faker.Number(0, 2) == 0 {
			likers = append(likers, u)
		}
	}
	return threads, likers
}

func (s *Seeder) count(fn func(*Summary)) {
	s.mu.Lock()
	fn(&s.summary)
	s.mu.Unlock()
}

// Clear removes every user and post. Intended for development databases only.
func Clear(ctx context.Context, db *mongo.Database) error {
	for _, coll := range []string{database.PostsCollection, database.UsersCollection} {
		res, err := db.Collection(coll).DeleteMany(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("clear %s: %w", coll, err)
		}
		log.Printf("Cleared %d documents from %s", res.DeletedCount, coll)
	}
	return nil
}
