package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Middleware adds a request-scoped logger to the context and logs each
// completed request with its status and duration.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With(FieldRequestID, middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(WithContext(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}
			fields := NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.RemoteAddr).
				WithHTTPResponse(status, time.Since(start).Milliseconds()).
				WithComponent(reqLogger.component)
			reqLogger.Logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogExpenseLogged logs a persisted expense
func (sl *StructuredLogger) LogExpenseLogged(ctx context.Context, ledger, desc string, amountCents int64, expenseType string) {
	fields := NewFields().
		WithExpense(ledger, desc, amountCents, expenseType).
		WithOperation(OpAppend)
	sl.logger.InfoContext(ctx, "Expense logged", fields.ToSlice()...)
}

// LogCommandError logs a failed chat command with its classification
func (sl *StructuredLogger) LogCommandError(ctx context.Context, command string, chatID, userID int64, err error, errorType string) {
	fields := NewFields().
		WithCommand(command, chatID, userID).
		WithError(err, errorType)
	level := slog.LevelWarn
	if errorType == ErrorTypeBackend || errorType == ErrorTypeAuth || errorType == ErrorTypeInternal {
		level = slog.LevelError
	}
	sl.logger.Logger.Log(ctx, level, "Command failed", append([]any{FieldComponent, sl.logger.component}, fields.ToSlice()...)...)
}
