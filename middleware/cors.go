package middleware

import (
	"context"
	"maps"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
)

// CORSConfig configures CORS. Empty lists fall back to the defaults.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	// MaxAge in seconds; zero means 86400.
	MaxAge int
}

// CORS adds Access-Control-Allow-* headers to every result, including the
// empty result of an OPTIONS preflight.
type CORS struct {
	headers map[string]string
}

// NewCORS returns a CORS middleware.
func NewCORS(cfg CORSConfig) *CORS {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"*"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 86400
	}
	h := map[string]string{
		"access-control-allow-origin":  strings.Join(cfg.AllowOrigins, ", "),
		"access-control-allow-methods": strings.Join(cfg.AllowMethods, ", "),
		"access-control-allow-headers": strings.Join(cfg.AllowHeaders, ", "),
		"access-control-max-age":       strconv.Itoa(cfg.MaxAge),
	}
	if cfg.AllowCredentials {
		h["access-control-allow-credentials"] = "true"
	}
	return &CORS{headers: h}
}

func (c *CORS) AfterRequest(_ context.Context, _ *request.Context, result any) (any, error) {
	return WithHeaders(result, c.headers), nil
}

// WithHeaders returns result as a Tuple carrying headers on top of the ones it
// already has. Renderer bodies keep their own status and headers, which take
// precedence when the response is written.
func WithHeaders(result any, headers map[string]string) handler.Tuple {
	t, ok := result.(handler.Tuple)
	if !ok {
		t = handler.Tuple{Body: result}
	}
	merged := make(map[string]string, len(t.Headers)+len(headers))
	maps.Copy(merged, t.Headers)
	maps.Copy(merged, headers)
	t.Headers = merged
	return t
}
