package logger

import (
	"context"
	"log/slog"
)

type notificationCtxKey struct{}

type notificationScope struct {
	id    string
	owner string
}

// WithNotification returns a context whose log records carry the
// notification id and owner.
func WithNotification(ctx context.Context, notificationID, owner string) context.Context {
	return context.WithValue(ctx, notificationCtxKey{}, notificationScope{id: notificationID, owner: owner})
}

func notificationExtractor(ctx context.Context) (slog.Attr, bool) {
	s, ok := ctx.Value(notificationCtxKey{}).(notificationScope)
	if !ok {
		return slog.Attr{}, false
	}
	attrs := []slog.Attr{slog.String("id", s.id)}
	if s.owner != "" {
		attrs = append(attrs, slog.String("owner", s.owner))
	}
	return Group("notification", attrs...), true
}
