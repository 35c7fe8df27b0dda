package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the process-wide slog logger to emit structured JSON on
// stdout and returns it. Every line carries the service name and, when
// provided, an environment tag.
func Setup(service, env string) *slog.Logger {
	logger := New(os.Stdout, service, env)
	slog.SetDefault(logger)
	return logger
}

// New builds the JSON logger against an arbitrary writer. Attribute keys
// follow the ingestion schema: timestamp, severity, message.
func New(w io.Writer, service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	args := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		args = append(args, slog.String("env", env))
	}
	return slog.New(handler).With(args...)
}
