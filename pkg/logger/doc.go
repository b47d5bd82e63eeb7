// Package logger builds *slog.Logger instances from functional options and
// provides attribute helpers that keep key names consistent.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "notifykit"),
//	    logger.WithContextValue("request_id", middleware.RequestIDKey),
//	)
//	logger.SetAsDefault(log)
//
//	ctx = logger.WithNotification(ctx, n.ID, owner)
//	log.InfoContext(ctx, "notification sent", logger.Channel("email"))
//
// The handler is wrapped in a LogHandlerDecorator that runs every
// ContextExtractor against the record's context, so request and
// notification scoped values appear without being passed explicitly.
// Error and Errors return an empty Attr for nil errors.
package logger
