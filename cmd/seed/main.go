// Command main runs the database seeder for Quill.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/repository"
	"quill/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	maxComments := flag.Int("comments", defaults.MaxCommentsPerPost, "Maximum comments per post")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread publication dates over this many days")
	seedValue := flag.Int64("rand", 0, "Random seed for reproducible data (0 uses the clock)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d posts each, clean=%v", *numUsers, *postsPerUser, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	defer database.Disconnect(context.Background(), client)

	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	if *shouldClean {
		if err := seed.Clear(ctx, db); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	opts := defaults
	opts.Users = *numUsers
	opts.PostsPerUser = *postsPerUser
	opts.MaxCommentsPerPost = *maxComments
	opts.MaxDays = *maxDays
	opts.Seed = *seedValue

	s := seed.NewSeeder(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		auth.NewHasher(cfg.SaltRound, cfg.BcryptPepper),
		opts,
	)
	if _, err := s.Run(ctx); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	// Cached pages would otherwise hide the new posts until they expire.
	cache.InitRedis(cfg.RedisURL)
	if rdb := cache.GetClient(); rdb != nil {
		c := cache.New(rdb)
		if *shouldClean {
			c.FlushDB(ctx)
		} else {
			for _, prefix := range []string{cache.PostsPrefix, cache.PostPrefix, cache.UserPostsPrefix} {
				c.DelPrefix(ctx, prefix)
			}
		}
		_ = rdb.Close()
	}

	log.Println("All done! Your database is now populated with test data.")
	log.Printf("All test users have the password: %s", seed.DefaultPassword)
}
