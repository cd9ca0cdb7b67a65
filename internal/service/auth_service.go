package service

import (
	"context"
	"errors"
	"strings"

	"quill/internal/auth"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// TokenIssuer mints token pairs and verifies refresh tokens.
type TokenIssuer interface {
	IssuePair(user *models.User) (auth.TokenPair, error)
	VerifyRefresh(token string) (*auth.Claims, error)
}

type AuthService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	logger *observability.StructuredLogger
}

type SignUpInput struct {
	FullName        string `json:"fullName" validate:"omitempty,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=64"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignInResult is returned by SignIn and Refresh. User never carries a password.
type SignInResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: observability.NewStructuredLogger(),
	}
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	in.Email = models.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	taken, err := s.users.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("user")
	}
	if in.Password != in.ConfirmPassword {
		return nil, models.NewBadRequestError("Passwords do not match")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// A concurrent sign-up that wins the race surfaces as a duplicate key conflict.
	user, err := s.users.Create(ctx, &models.User{
		FullName: in.FullName,
		Email:    in.Email,
		Password: hash,
		Role:     models.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	user.Password = ""

	s.logger.LogServiceCall(ctx, "AuthService", "SignUp", map[string]any{"user_id": user.ID.Hex()})
	return user, nil
}

func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email, true)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnprocessableError("incorrect email")
	}

	if err := s.hasher.Compare(user.Password, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, models.NewUnprocessableError("incorrect password")
		}
		return nil, models.NewInternalError(err)
	}
	if !user.IsActive {
		return nil, models.NewForbiddenError("Account is deactivated")
	}

	return s.issue(user)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*SignInResult, error) {
	if refreshToken == "" {
		return nil, models.NewValidationError("refreshToken is required",
			models.FieldError{Field: "refreshToken", Message: "refreshToken is required"})
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, models.NewForbiddenError("Refresh token expired")
		}
		return nil, models.NewUnauthorizedError("Invalid refresh token")
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("User no longer exists")
	}
	if !user.IsActive {
		return nil, models.NewForbiddenError("Account is deactivated")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*SignInResult, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Password = ""
	return &SignInResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}
