// Package logger builds *slog.Logger values through functional options and
// injects request-scoped attributes pulled from context.Context.
//
// New picks a text or JSON handler, applies static attributes and wraps the
// result in LogHandlerDecorator, which runs every registered ContextExtractor
// on each log call. Attribute helpers (Error, RequestID, Method, Status,
// Duration, ...) keep key names consistent between the server, the worker
// pool, the websocket bridge and the background scheduler.
//
//	log := logger.New(
//	    logger.WithDevelopment("dispatchd"),
//	    logger.WithContextExtractors(middleware.RequestIDExtractor()),
//	)
//	log.InfoContext(ctx, "request", logger.Method("GET"), logger.Status(200))
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
