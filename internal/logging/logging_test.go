package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("console default", func(t *testing.T) {
		res := NewLoggerWithPath(Config{Level: "debug"})
		assert.False(t, res.UsingFile)
		assert.False(t, res.FallbackUsed)
		assert.Equal(t, zerolog.DebugLevel, res.Logger.GetLevel())
		require.NoError(t, res.Close())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		res := NewLoggerWithPath(Config{Level: "chatty"})
		assert.Equal(t, zerolog.InfoLevel, res.Logger.GetLevel())
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "bulkops.log")
		res := NewLoggerWithPath(Config{Level: "info", File: path})
		require.True(t, res.UsingFile)
		assert.Equal(t, path, res.FilePath)

		res.Logger.Info().Str("k", "v").Msg("hello")
		require.NoError(t, res.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"hello"`)
	})

	t.Run("unwritable file falls back", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		res := NewLoggerWithPath(Config{File: filepath.Join(blocker, "nested", "x.log")})
		assert.False(t, res.UsingFile)
		assert.True(t, res.FallbackUsed)
		assert.NotEmpty(t, res.FallbackReason)
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Hook(traceHook{})

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	ctx = l.WithContext(ctx)

	FromContext(ctx).Info().Ctx(ctx).Msg("with trace")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "trace-1", event["trace_id"])
	assert.Equal(t, "with trace", event["message"])
}

func TestFromContextFallback(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(zerolog.New(&buf))
	t.Cleanup(func() { SetDefault(zerolog.Nop()) })

	FromContext(context.Background()).Info().Msg("fallback")
	assert.Contains(t, buf.String(), "fallback")
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	l := ComponentLogger(zerolog.New(&buf), "engine")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"component":"engine"`)
}

func TestTraceIDs(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	id := GetOrGenerateTraceID(context.Background())
	assert.True(t, ValidID(id))

	ctx := ContextWithTraceID(context.Background(), id)
	assert.Equal(t, id, GetOrGenerateTraceID(ctx))
	assert.False(t, ValidID("not-a-ulid"))
}
