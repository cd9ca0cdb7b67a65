// Package server contains the HTTP handlers and wiring for the blog API.
package server

import (
	"context"
	"log"
	"log/slog"
	"time"

	_ "quill/docs" // swagger docs
	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	mongo          *mongo.Client
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *auth.TokenManager
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	authService    *service.AuthService
	postService    *service.PostService
	commentService *service.CommentService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient and images may be nil; the cache and uploads are then disabled.
func NewServerWithDeps(cfg *config.Config, client *mongo.Client, redisClient *redis.Client, images storage.ImageStore) (*Server, error) {
	db := client.Database(cfg.DBName)
	s := newServer(cfg, repository.NewUserRepository(db), repository.NewPostRepository(db), redisClient, images)
	s.mongo = client
	s.promMiddleware = middleware.InitMetrics(cfg.AppName)
	return s, nil
}

func newServer(cfg *config.Config, users repository.UserRepository, posts repository.PostRepository, redisClient *redis.Client, images storage.ImageStore) *Server {
	s := &Server{
		config:   cfg,
		redis:    redisClient,
		userRepo: users,
		postRepo: posts,
		tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL()),
	}

	c := cache.New(redisClient)
	s.authService = service.NewAuthService(users, auth.NewHasher(cfg.SaltRound, cfg.BcryptPepper), s.tokens)
	s.postService = service.NewPostService(posts, users, c, images, s.isAdminByUserID, service.PostServiceConfig{
		ListTTL:     cfg.PostsCacheTTL(),
		MaxUploadMB: cfg.ImageMaxUploadSizeMB,
	})
	s.commentService = service.NewCommentService(posts, c, s.isAdminByUserID)
	return s
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	maxUpload := s.config.ImageMaxUploadSizeMB
	if maxUpload <= 0 {
		maxUpload = storage.DefaultMaxUploadSizeMB
	}

	app := fiber.New(fiber.Config{
		AppName:      s.config.AppName,
		BodyLimit:    (maxUpload + 1) * 1024 * 1024,
		ErrorHandler: s.ErrorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user ids into the request context for logging
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.TracingMiddleware())
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses keep their headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.limitsDisabled()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitError())
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api/v1")
	api.Get("/swagger/*", swagger.HandlerDefault)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/signUp", s.rateLimit(3, 10*time.Minute, "signup"), s.SignUp)
	authRoutes.Post("/login", s.rateLimit(10, 5*time.Minute, "login"), s.SignIn)
	authRoutes.Post("/refresh", s.rateLimit(30, 5*time.Minute, "refresh"), s.Refresh)

	authRequired := s.AuthRequired()

	posts := api.Group("/posts")
	posts.Get("/", s.FetchPosts)
	posts.Post("/", authRequired, s.rateLimit(5, 5*time.Minute, "create_post"), s.CreatePost)

	// Define specific /:postId/:resource routes BEFORE generic /:postId route
	posts.Post("/:postId/like", authRequired, s.LikePost)
	posts.Delete("/:postId/like", authRequired, s.UnlikePost)
	posts.Get("/:postId/comments", s.FetchPostComments)
	posts.Post("/:postId/comments", authRequired, s.rateLimit(10, time.Minute, "create_comment"), s.PostComment)
	posts.Get("/:postId/comments/:commentId", s.FindPostComment)
	posts.Patch("/:postId/comments/:commentId", authRequired, s.UpdatePostComment)
	posts.Delete("/:postId/comments/:commentId", authRequired, s.RemovePostComment)
	posts.Post("/:postId/comments/:commentId/replies", authRequired, s.rateLimit(10, time.Minute, "create_reply"), s.PostReply)
	posts.Delete("/:postId/comments/:commentId/replies/:replyId", authRequired, s.RemoveReply)

	posts.Get("/:postId", s.FindPost)
	posts.Patch("/:postId", authRequired, s.UpdatePost)
	posts.Delete("/:postId", authRequired, s.RemovePost)

	users := api.Group("/users", authRequired)
	users.Get("/:userId/posts", s.UserPosts)
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.AuthRequired(s.tokens, s.userRepo)
}

// rateLimit applies a named Redis limit outside development and test.
func (s *Server) rateLimit(limit int, window time.Duration, name string) fiber.Handler {
	if s.limitsDisabled() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.RateLimit(s.redis, limit, window, name)
}

func (s *Server) limitsDisabled() bool {
	return s.config.Env == "test" || s.config.Env == "development"
}

// ErrorHandler renders every error returned by a handler. Server-side
// failures are logged with their cause; the response never carries it.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings MongoDB and Redis. Redis being absent is reported but
// does not fail readiness, since the cache is optional.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.mongo == nil {
		dbStatus = "unavailable"
	} else if err := s.mongo.Ping(ctx, nil); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := cache.New(s.redis).Ping(ctx); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	database.Disconnect(ctx, s.mongo)

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
