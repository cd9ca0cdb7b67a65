package server

import (
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SignUp handles POST /api/v1/auth/signUp
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignUpInput true "Signup request"
// @Success 201 {object} models.Response{data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /auth/signUp [post]
func (s *Server) SignUp(c *fiber.Ctx) error {
	var req service.SignUpInput
	if err := bindBody(c, &req); err != nil {
		return err
	}

	user, err := s.authService.SignUp(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success("Sign up successful", user))
}

// SignIn handles POST /api/v1/auth/login
// @Summary User login
// @Description Exchange email and password for an access and refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignInInput true "Login request"
// @Success 200 {object} models.Response{data=service.SignInResult}
// @Failure 403 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) SignIn(c *fiber.Ctx) error {
	var req service.SignInInput
	if err := bindBody(c, &req); err != nil {
		return err
	}

	res, err := s.authService.SignIn(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.JSON(models.Success("Login successful", res))
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refreshToken=string} true "Refresh request"
// @Success 200 {object} models.Response{data=service.SignInResult}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := bindBody(c, &req); err != nil {
		return err
	}

	res, err := s.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(models.Success("Token refreshed", res))
}
