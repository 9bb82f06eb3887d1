package middleware

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/request"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type requestIDKey struct{}

// RequestID keeps a well-formed incoming X-Request-ID or assigns a new UUID,
// and echoes it on the response.
type RequestID struct{}

func (RequestID) BeforeRequest(_ context.Context, rc *request.Context) (*request.Context, error) {
	id := rc.Header(RequestIDHeader)
	if !isValidRequestID(id) {
		id = uuid.NewString()
	}
	return rc.WithHeader(RequestIDHeader, id).WithValue(requestIDKey{}, id), nil
}

func (RequestID) AfterRequest(_ context.Context, rc *request.Context, result any) (any, error) {
	id := RequestIDFrom(rc)
	if id == "" {
		return result, nil
	}
	return WithHeaders(result, map[string]string{"x-request-id": id}), nil
}

// RequestIDFrom returns the id assigned by RequestID, or "".
func RequestIDFrom(rc *request.Context) string {
	if rc == nil {
		return ""
	}
	id, _ := rc.Value(requestIDKey{}).(string)
	return id
}

// RequestIDExtractor logs the request id of the request context carried by ctx.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := RequestIDFrom(request.FromContext(ctx)); id != "" {
			return logger.RequestID(id), true
		}
		return slog.Attr{}, false
	}
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	return validRequestID.MatchString(id)
}
