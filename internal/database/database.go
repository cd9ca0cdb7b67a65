// Package database handles the MongoDB connection and index management.
package database

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"quill/internal/config"
	"quill/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection = "users"
	PostsCollection = "posts"
)

// SlowCommandThreshold is the duration after which a command is logged as slow.
const SlowCommandThreshold = 200 * time.Millisecond

// Connect opens a client against cfg.DBURI, verifies it with a ping and returns
// the configured database.
func Connect(cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.DBURI).
		SetAppName(cfg.AppName).
		SetMonitor(commandMonitor(observability.GlobalLogger.Logger))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Println("Successfully connected to MongoDB!")
	return client, client.Database(cfg.DBName), nil
}

// commandMonitor logs failed and slow commands, mirroring a SQL query logger.
func commandMonitor(logger *slog.Logger) *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, e *event.CommandSucceededEvent) {
			if e.Duration > SlowCommandThreshold {
				logger.WarnContext(ctx, "mongo slow command",
					slog.String("command", e.CommandName),
					slog.String("database", e.DatabaseName),
					slog.Duration("elapsed", e.Duration),
				)
			}
		},
		Failed: func(ctx context.Context, e *event.CommandFailedEvent) {
			logger.ErrorContext(ctx, "mongo command error",
				slog.String("command", e.CommandName),
				slog.String("database", e.DatabaseName),
				slog.Duration("elapsed", e.Duration),
				slog.String("error", e.Failure),
			)
		},
	}
}

// IndexModels lists the indexes each collection needs.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		},
		PostsCollection: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("active_created")},
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "active", Value: 1}}, Options: options.Index().SetName("author_active")},
			{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags")},
		},
	}
}

// EnsureIndexes creates any missing indexes. Existing indexes are left as they are.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range IndexModels() {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Disconnect closes the client, logging rather than returning errors.
func Disconnect(ctx context.Context, client *mongo.Client) {
	if client == nil {
		return
	}
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("Error closing MongoDB connection: %v", err)
		return
	}
	log.Println("MongoDB connection closed.")
}
