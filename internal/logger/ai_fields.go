package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by every log line the estimator emits.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
)

// WithCommonFields tags the logger with the estimate provider and model.
// Blank values are dropped so unset config does not produce empty fields,
// and a nil logger falls back to a no-op one.
func WithCommonFields(log *zap.Logger, provider, model string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	fields := make([]zap.Field, 0, 2)
	if provider = strings.TrimSpace(provider); provider != "" {
		fields = append(fields, zap.String(FieldProvider, provider))
	}
	if model = strings.TrimSpace(model); model != "" {
		fields = append(fields, zap.String(FieldModel, model))
	}

	if len(fields) == 0 {
		return log
	}

	return log.With(fields...)
}
