package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"quill/internal/auth"
	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T, users *userRepoStub) (*AuthService, *auth.Hasher, *auth.TokenManager) {
	t.Helper()
	hasher := auth.NewHasher(bcrypt.MinCost, "pepper")
	tokens := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", time.Minute, time.Hour)
	return NewAuthService(users, hasher, tokens), hasher, tokens
}

func TestAuthService_SignUp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	valid := SignUpInput{FullName: " Ada ", Email: " Ada@Example.com ", Password: "secret1", ConfirmPassword: "secret1"}

	t.Run("creates user", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		var stored *models.User
		users.createFn = func(_ context.Context, u *models.User) (*models.User, error) {
			cp := *u
			stored = &cp
			u.ID = primitive.NewObjectID()
			return u, nil
		}
		svc, hasher, _ := newAuthService(t, users)

		user, err := svc.SignUp(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.Equal(t, "Ada", user.FullName)
		assert.Empty(t, user.Password)
		require.NotNil(t, stored)
		assert.NotEqual(t, "secret1", stored.Password)
		assert.NoError(t, hasher.Compare(stored.Password, "secret1"))
	})

	t.Run("maximum length password with production pepper", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		var stored string
		users.createFn = func(_ context.Context, u *models.User) (*models.User, error) {
			stored = u.Password
			u.ID = primitive.NewObjectID()
			return u, nil
		}
		hasher := auth.NewHasher(bcrypt.MinCost, strings.Repeat("p", 32))
		tokens := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", time.Minute, time.Hour)
		svc := NewAuthService(users, hasher, tokens)

		password := strings.Repeat("é", 64)
		in := SignUpInput{FullName: "Ada", Email: "ada@example.com", Password: password, ConfirmPassword: password}
		_, err := svc.SignUp(ctx, in)
		require.NoError(t, err)
		assert.NoError(t, hasher.Compare(stored, password))
	})

	t.Run("email taken", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.emailTakenFn = func(_ context.Context, email string) (bool, error) {
			assert.Equal(t, "ada@example.com", email)
			return true, nil
		}
		svc, _, _ := newAuthService(t, users)
		_, err := svc.SignUp(ctx, valid)
		appErr := assertAppError(t, err, models.CodeConflict)
		assert.Equal(t, "user already exists", appErr.Message)
	})

	t.Run("passwords differ", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newAuthService(t, noopUserRepo())
		in := valid
		in.ConfirmPassword = "other12"
		_, err := svc.SignUp(ctx, in)
		appErr := assertAppError(t, err, models.CodeBadRequest)
		assert.Equal(t, "Passwords do not match", appErr.Message)
	})

	invalid := []struct {
		name  string
		input SignUpInput
	}{
		{name: "bad email", input: SignUpInput{Email: "nope", Password: "secret1", ConfirmPassword: "secret1"}},
		{name: "short password", input: SignUpInput{Email: "a@b.co", Password: "abc", ConfirmPassword: "abc"}},
		{name: "missing confirmation", input: SignUpInput{Email: "a@b.co", Password: "secret1"}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc, _, _ := newAuthService(t, noopUserRepo())
			_, err := svc.SignUp(ctx, tc.input)
			assertValidationError(t, err)
		})
	}
}

func TestAuthService_SignIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hasher := auth.NewHasher(bcrypt.MinCost, "pepper")
	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)

	account := func(active bool) *userRepoStub {
		users := noopUserRepo()
		users.findByEmailFn = func(_ context.Context, email string, includeSensitive bool) (*models.User, error) {
			assert.True(t, includeSensitive)
			if email != "ada@example.com" {
				return nil, nil
			}
			return &models.User{ID: primitive.NewObjectID(), Email: email, Password: hash, Role: models.RoleUser, IsActive: active}, nil
		}
		return users
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		svc, _, tokens := newAuthService(t, account(true))
		res, err := svc.SignIn(ctx, SignInInput{Email: "ada@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Empty(t, res.User.Password)

		claims, err := tokens.VerifyAccess(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID.Hex(), claims.Subject)
		_, err = tokens.VerifyRefresh(res.RefreshToken)
		assert.NoError(t, err)
	})

	tests := []struct {
		name    string
		users   *userRepoStub
		input   SignInInput
		code    string
		message string
	}{
		{name: "unknown email", users: account(true), input: SignInInput{Email: "bob@example.com", Password: "secret1"}, code: models.CodeValidation, message: "incorrect email"},
		{name: "wrong password", users: account(true), input: SignInInput{Email: "ada@example.com", Password: "secret2"}, code: models.CodeValidation, message: "incorrect password"},
		{name: "deactivated", users: account(false), input: SignInInput{Email: "ada@example.com", Password: "secret1"}, code: models.CodeForbidden, message: "Account is deactivated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc, _, _ := newAuthService(t, tc.users)
			_, err := svc.SignIn(ctx, tc.input)
			appErr := assertAppError(t, err, tc.code)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestAuthService_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	user := &models.User{ID: primitive.NewObjectID(), Email: "ada@example.com", Role: models.RoleUser, IsActive: true}

	t.Run("rotates pair", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.findByIDFn = func(_ context.Context, id primitive.ObjectID) (*models.User, error) {
			assert.Equal(t, user.ID, id)
			u := *user
			return &u, nil
		}
		svc, _, tokens := newAuthService(t, users)
		pair, err := tokens.IssuePair(user)
		require.NoError(t, err)

		res, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, res.AccessToken)
		assert.Equal(t, user.ID, res.User.ID)
	})

	t.Run("access token rejected", func(t *testing.T) {
		t.Parallel()
		svc, _, tokens := newAuthService(t, noopUserRepo())
		pair, err := tokens.IssuePair(user)
		require.NoError(t, err)
		_, err = svc.Refresh(ctx, pair.AccessToken)
		assertAppError(t, err, models.CodeUnauthorized)
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newAuthService(t, noopUserRepo())
		_, err := svc.Refresh(ctx, "")
		assertValidationError(t, err)
	})

	t.Run("user gone", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.findByIDFn = func(_ context.Context, _ primitive.ObjectID) (*models.User, error) { return nil, nil }
		svc, _, tokens := newAuthService(t, users)
		pair, err := tokens.IssuePair(user)
		require.NoError(t, err)
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		appErr := assertAppError(t, err, models.CodeUnauthorized)
		assert.Equal(t, "User no longer exists", appErr.Message)
	})
}
