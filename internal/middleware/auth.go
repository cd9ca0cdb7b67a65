package middleware

import (
	"context"
	"errors"
	"strings"

	"quill/internal/auth"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// UserLookup resolves the subject of a token to a current user.
type UserLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Locals keys set by AuthRequired.
const (
	LocalUserID   = "userID"
	LocalUserRole = "userRole"
	LocalUser     = "user"
)

// AuthRequired enforces a bearer access token on protected routes.
// A missing or malformed header is 401, an expired token is 403, any other
// verification failure is 401, and a subject that is no longer a user is 401.
func AuthRequired(tokens TokenVerifier, users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		claims, err := tokens.VerifyAccess(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return models.RespondWithError(c, fiber.StatusForbidden,
					models.NewForbiddenError("Token expired"))
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token"))
		}

		userID, err := claims.UserID()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token"))
		}

		user, err := users.FindByID(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, models.StatusOf(err), err)
		}
		if user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("User no longer exists"))
		}

		id := user.ID.Hex()
		c.Locals(LocalUserID, id)
		c.Locals(LocalUserRole, user.Role)
		c.Locals(LocalUser, user)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, id))

		return c.Next()
	}
}

// UserID returns the authenticated user's id, or NilObjectID on public routes.
func UserID(c *fiber.Ctx) primitive.ObjectID {
	hex, ok := c.Locals(LocalUserID).(string)
	if !ok {
		return primitive.NilObjectID
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}
