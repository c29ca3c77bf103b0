package services

import "context"

type contextKey string

const (
	bookmarkIDKey contextKey = "bookmark_id"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithBookmarkID annotates context with the bookmark identifier.
func WithBookmarkID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, bookmarkIDKey, id)
}

// BookmarkIDFromContext extracts the bookmark identifier if present.
func BookmarkIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(bookmarkIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
