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

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string, includeSensitive bool) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	IsAdmin(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type userRepository struct {
	base *Repository[models.User]
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		base: NewRepository[models.User](db.Collection(database.UsersCollection), "user", "password"),
	}
}

// Create stores user with a normalized email and the default role and flags.
func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = primitive.NilObjectID
	user.Email = models.NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.IsActive = true
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	return r.base.Create(ctx, user)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string, includeSensitive bool) (*models.User, error) {
	return r.base.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)}, FindOptions{IncludeSensitive: includeSensitive})
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.base.FindOne(ctx, bson.M{"_id": id}, FindOptions{})
}

func (r *userRepository) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := r.base.Count(ctx, bson.M{"_id": id})
	return n > 0, err
}

func (r *userRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	n, err := r.base.Count(ctx, bson.M{"email": models.NormalizeEmail(email)})
	return n > 0, err
}

// IsAdmin reports whether the user may moderate content it does not own.
// Unknown users are not admins.
func (r *userRepository) IsAdmin(ctx context.Context, id primitive.ObjectID) (bool, error) {
	user, err := r.base.FindOne(ctx, bson.M{"_id": id}, FindOptions{Projection: []string{"role"}})
	if err != nil || user == nil {
		return false, err
	}
	return user.Role.CanModerate(), nil
}
