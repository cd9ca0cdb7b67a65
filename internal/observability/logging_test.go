package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := GlobalLogger
	buf := &bytes.Buffer{}
	SetLogger(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { GlobalLogger = prev })
	return buf
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	id := GenerateCorrelationID()
	require.NotEmpty(t, id)

	ctx := WithCorrelationID(context.Background(), id)
	assert.Equal(t, id, ExtractCorrelationID(ctx))
	assert.Empty(t, ExtractCorrelationID(context.Background()))
}

func TestRepoLogger_LogError(t *testing.T) {
	buf := captureLogs(t)
	ctx := WithCorrelationID(context.Background(), "abc")

	NewRepoLogger("posts").LogError(ctx, errors.New("connection reset"), "find")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "repository error", entry["msg"])
	assert.Equal(t, "posts", entry["collection"])
	assert.Equal(t, "find", entry["operation"])
	assert.Equal(t, "abc", entry["correlation_id"])
	assert.Equal(t, "connection reset", entry["error"])
}

func TestRepoLogger_Disabled(t *testing.T) {
	buf := captureLogs(t)
	Config.EnableRepoLogging = false
	defer func() { Config.EnableRepoLogging = true }()

	NewRepoLogger("users").LogWrite(context.Background(), "insert", nil)
	assert.Zero(t, buf.Len())
}

func TestStructuredLogger_LogServiceCall(t *testing.T) {
	buf := captureLogs(t)

	NewStructuredLogger().LogServiceCall(context.Background(), "PostService", "FindPost", map[string]any{"post_id": "1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "PostService", entry["service"])
	assert.Equal(t, "FindPost", entry["method"])
	assert.Equal(t, "1", entry["post_id"])
}
