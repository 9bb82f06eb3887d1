package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/pkg/logger"
)

type ctxKey struct{}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf)).Info("hello", logger.Status(201))
		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
		assert.InDelta(t, 201, entry["status"], 0)
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText)).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filter", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithLevelName("warn"))
		log.Info("dropped")
		assert.Empty(t, buf.String())
		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("invalid options panic", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
		assert.Panics(t, func() { logger.WithLevelName("loud") })
	})

	t.Run("static attributes and context values", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithAttr(slog.String("svc", "test")),
			logger.WithContextValue("rid", ctxKey{}),
			logger.WithContextExtractors(nil, func(context.Context) (slog.Attr, bool) {
				return slog.String("extra", "x"), true
			}),
		)
		ctx := context.WithValue(context.Background(), ctxKey{}, "abc")
		log.InfoContext(ctx, "msg")
		entry := decode(t, buf)
		assert.Equal(t, "test", entry["svc"])
		assert.Equal(t, "abc", entry["rid"])
		assert.Equal(t, "x", entry["extra"])
	})

	t.Run("environments", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithEnvironment("prod", "svc"), logger.WithOutput(buf)).Info("msg")
		entry := decode(t, buf)
		assert.Equal(t, "svc", entry["service"])
		assert.Equal(t, logger.EnvProduction, entry["env"])

		buf.Reset()
		logger.New(logger.WithEnvironment("local", "svc"), logger.WithOutput(buf)).Debug("dbg")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "env="+logger.EnvDevelopment)
	})

	t.Run("decorator keeps extractors across WithAttrs and WithGroup", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("rid", ctxKey{}))
		ctx := context.WithValue(context.Background(), ctxKey{}, "r1")
		log.With("a", 1).WithGroup("g").InfoContext(ctx, "msg", "b", 2)
		assert.Contains(t, buf.String(), `"rid":"r1"`)
		assert.Contains(t, buf.String(), `"a":1`)
	})

	t.Run("discard", func(t *testing.T) {
		t.Parallel()
		assert.False(t, logger.Discard().Enabled(context.Background(), slog.LevelError))
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	err1, err2 := errors.New("first"), errors.New("second")
	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	assert.Len(t, attr.Value.Group(), 2)
	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))

	assert.Equal(t, err1, logger.Error(err1).Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.True(t, logger.RequestID("").Equal(slog.Attr{}))
	assert.Equal(t, "request_id", logger.RequestID("x").Key)

	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.Equal(t, "session_id", logger.Session("s").Key)
	assert.Equal(t, int64(3), logger.Worker(3).Value.Int64())

	g := logger.Group("req", logger.Method("GET"), logger.Path("/"))
	require.Equal(t, slog.KindGroup, g.Value.Kind())
	assert.Len(t, g.Value.Group(), 2)
}
