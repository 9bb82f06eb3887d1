package server

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/dispatchkit/handler"
)

// HealthCheck returns a handler usable for liveness and readiness probes.
//
//   - Liveness: with no checks it answers 200 "ALIVE".
//   - Readiness: every check runs in order; 200 "READY" when all pass,
//     503 "NOT_READY" on the first failure.
func HealthCheck(checks ...func(context.Context) error) handler.Handler {
	return handler.Sync(func(ctx context.Context, _ handler.Args) (any, error) {
		if len(checks) == 0 {
			return handler.PlainText("ALIVE"), nil
		}
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return handler.PlainText("NOT_READY", handler.WithStatus(http.StatusServiceUnavailable)), nil
			}
		}
		return handler.PlainText("READY"), nil
	})
}
