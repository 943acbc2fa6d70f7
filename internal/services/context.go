package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	titleIDKey   contextKey = "title_id"
	stageKey     contextKey = "stage"
	driveIDKey   contextKey = "drive_id"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates context with the disc job identifier.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the disc job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(jobIDKey)
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

// WithTitleID annotates context with the disc title identifier.
func WithTitleID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, titleIDKey, id)
}

// TitleIDFromContext extracts the disc title identifier if present.
func TitleIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(titleIDKey)
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
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithDriveID annotates context with the optical drive identifier.
func WithDriveID(ctx context.Context, drive string) context.Context {
	if drive == "" {
		return ctx
	}
	return context.WithValue(ctx, driveIDKey, drive)
}

// DriveIDFromContext returns the drive identifier if present.
func DriveIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(driveIDKey)
	if str, ok := v.(string); ok && str != "" {
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
