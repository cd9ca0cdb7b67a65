package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxHandler_AddsRequestAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger("production", buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "65f0c0ffee")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-1")
	logger.With(slog.String("component", "test")).InfoContext(ctx, "hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"user_id":"65f0c0ffee"`, `"trace_id":"trace-1"`, `"component":"test"`} {
		assert.True(t, strings.Contains(out, want), "missing %s in %s", want, out)
	}
}

func TestContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "req-42")
		c.Locals(LocalUserID, "user-42")
		return c.Next()
	})
	app.Use(ContextMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Equal(t, "req-42", c.UserContext().Value(RequestIDKey))
		assert.Equal(t, "user-42", c.UserContext().Value(UserIDKey))
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
