package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quill/internal/auth"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userLookupStub struct {
	findByIDFn func(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

func (s userLookupStub) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findByIDFn(ctx, id)
}

func TestAuthRequired(t *testing.T) {
	const accessSecret, refreshSecret = "access-secret", "refresh-secret"
	tokens := auth.NewTokenManager(accessSecret, refreshSecret, time.Hour, 24*time.Hour)
	expiring := auth.NewTokenManager(accessSecret, refreshSecret, -time.Hour, 24*time.Hour)

	known := &models.User{ID: primitive.NewObjectID(), Email: "ada@example.com", Role: models.RoleAdmin}
	ghost := &models.User{ID: primitive.NewObjectID(), Email: "ghost@example.com", Role: models.RoleUser}

	users := userLookupStub{findByIDFn: func(_ context.Context, id primitive.ObjectID) (*models.User, error) {
		if id == known.ID {
			return known, nil
		}
		return nil, nil
	}}

	issue := func(m *auth.TokenManager, u *models.User) string {
		pair, err := m.IssuePair(u)
		require.NoError(t, err)
		return pair.AccessToken
	}
	refreshOnly, err := tokens.IssuePair(known)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/test", AuthRequired(tokens, users), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"userID": c.Locals(LocalUserID),
			"role":   c.Locals(LocalUserRole),
			"ctx":    c.UserContext().Value(UserIDKey),
		})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + issue(tokens, known),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:           "Refresh Token Used As Access",
			authHeader:     "Bearer " + refreshOnly.RefreshToken,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + issue(expiring, known),
			expectedStatus: http.StatusForbidden,
			expectedCode:   models.CodeForbidden,
		},
		{
			name:           "Deleted User",
			authHeader:     "Bearer " + issue(tokens, ghost),
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, known.ID.Hex(), body["userID"])
				assert.Equal(t, string(models.RoleAdmin), body["role"])
				assert.Equal(t, known.ID.Hex(), body["ctx"])
				return
			}

			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tt.expectedCode, body.Code)
		})
	}
}

func TestAuthRequired_LookupFailure(t *testing.T) {
	tokens := auth.NewTokenManager("a", "r", time.Hour, time.Hour)
	users := userLookupStub{findByIDFn: func(context.Context, primitive.ObjectID) (*models.User, error) {
		return nil, models.NewDataAccessError(errors.New("socket closed"))
	}}
	pair, err := tokens.IssuePair(&models.User{ID: primitive.NewObjectID(), Role: models.RoleUser})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/test", AuthRequired(tokens, users), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body.Message, "socket closed")
}

func TestUserID(t *testing.T) {
	app := fiber.New()
	id := primitive.NewObjectID()
	app.Get("/anon", func(c *fiber.Ctx) error {
		assert.True(t, UserID(c).IsZero())
		return nil
	})
	app.Get("/auth", func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, id.Hex())
		assert.Equal(t, id, UserID(c))
		return nil
	})

	for _, path := range []string{"/anon", "/auth"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}
}
