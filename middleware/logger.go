package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/request"
)

type startKey struct{}

// Logger writes one access log record per dispatched request and one error
// record per failed request. It never alters the result.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns an access logging middleware.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = logger.Discard()
	}
	return &Logger{log: l}
}

func (m *Logger) BeforeRequest(_ context.Context, rc *request.Context) (*request.Context, error) {
	return rc.WithValue(startKey{}, time.Now()), nil
}

func (m *Logger) AfterRequest(ctx context.Context, rc *request.Context, result any) (any, error) {
	attrs := []slog.Attr{
		logger.Method(rc.Method()),
		logger.Path(rc.Path()),
		logger.Status(statusOfResult(result)),
	}
	if start, ok := rc.Value(startKey{}).(time.Time); ok {
		attrs = append(attrs, logger.Duration(time.Since(start)))
	}
	m.log.LogAttrs(ctx, slog.LevelInfo, "request", attrs...)
	return result, nil
}

func (m *Logger) OnError(ctx context.Context, rc *request.Context, err error) any {
	m.log.LogAttrs(ctx, slog.LevelError, "request failed",
		logger.Method(rc.Method()),
		logger.Path(rc.Path()),
		logger.Status(StatusOf(err)),
		logger.Error(err),
	)
	return nil
}

func statusOfResult(result any) int {
	status := http.StatusOK
	if t, ok := result.(handler.Tuple); ok {
		if t.Status != 0 {
			status = t.Status
		}
		result = t.Body
	}
	if sc, ok := result.(handler.StatusCoder); ok {
		status = sc.StatusCode()
	}
	return status
}
