// Package bootstrap wires the external dependencies the server needs at startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/seed"
	"quill/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty database with generated content.
	SeedDemoData bool
}

// Runtime holds the connections created at startup. Redis and Images may be nil.
type Runtime struct {
	Mongo  *mongo.Client
	DB     *mongo.Database
	Redis  *redis.Client
	Images storage.ImageStore
}

// InitRuntime connects to MongoDB and Redis, ensures indexes and configures
// the image store.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	observability.SetLogger(middleware.Logger)

	client, db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.EnsureIndexes(ctx, db); err != nil {
		database.Disconnect(ctx, client)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)

	rt := &Runtime{
		Mongo:  client,
		DB:     db,
		Redis:  cache.GetClient(),
		Images: imageStore(cfg),
	}

	if opts.SeedDemoData {
		if err := seedIfEmpty(ctx, cfg, db); err != nil {
			database.Disconnect(ctx, client)
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return rt, nil
}

// imageStore returns nil when Cloudinary is not configured. Uploads then
// fail with 503 while everything else keeps working.
func imageStore(cfg *config.Config) storage.ImageStore {
	store, err := storage.NewImageStore(cfg)
	if err != nil {
		if errors.Is(err, storage.ErrStoreNotConfigured) {
			log.Println("Image store not configured (continuing without uploads)")
		} else {
			log.Printf("Image store warning: %v (continuing without uploads)", err)
		}
		return nil
	}
	return store
}

func seedIfEmpty(ctx context.Context, cfg *config.Config, db *mongo.Database) error {
	n, err := db.Collection(database.UsersCollection).EstimatedDocumentCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Skipping demo seed: %d users already present", n)
		return nil
	}

	s := seed.NewSeeder(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		auth.NewHasher(cfg.SaltRound, cfg.BcryptPepper),
		seed.DefaultOptions(),
	)
	_, err = s.Run(ctx)
	return err
}
