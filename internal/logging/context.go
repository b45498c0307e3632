package logging

import (
	"context"
	"log/slog"

	"recap/internal/services"
)

// ContextFields returns the standard attributes carried by ctx.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]Attr, 0, 4)
	if id, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, String(FieldSessionID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, String(FieldStage, stage))
	}
	if speaker, ok := services.SpeakerIDFromContext(ctx); ok {
		fields = append(fields, String(FieldSpeakerID, speaker))
	}
	if reqID, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, String(FieldCorrelationID, reqID))
	}
	return fields
}

// WithContext returns a logger enriched with the context's standard fields.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
