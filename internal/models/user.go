// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser      Role = "User"
	RoleModerator Role = "Moderator"
	RoleAdmin     Role = "Admin"
)

// CanModerate reports whether the role may act on content it does not own.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

// User is stored in the users collection.
// Password is excluded from default projections and never serialized.
type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName        string             `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Email           string             `bson:"email" json:"email" validate:"required,email"`
	Password        string             `bson:"password,omitempty" json:"-"`
	Role            Role               `bson:"role" json:"role" validate:"oneof=User Moderator Admin"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	IsEmailVerified bool               `bson:"isEmailVerified" json:"isEmailVerified"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserSummary is the public shape of a user embedded into populated documents.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FullName string             `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Email    string             `bson:"email,omitempty" json:"email,omitempty"`
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
