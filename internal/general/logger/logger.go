package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

// Logger writes single-line JSON entries with a fixed envelope:
// timestamp, level, service, action, message, hostname, request_id, delivery_id,
// details and (for errors) error{msg, stack}.
type Logger struct {
	service  string
	hostname string
	slog     *slog.Logger
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	return NewWriter(service, os.Stdout)
}

// NewWriter creates a structured logger writing to w. Tests pass a buffer or io.Discard.
func NewWriter(service string, w io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05Z07:00"))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})

	return &Logger{
		service:  service,
		hostname: hn,
		slog:     slog.New(handler).With(slog.String("service", service), slog.String("hostname", hn)),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWriter("nop", io.Discard)
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.emit(ctx, slog.LevelDebug, action, msg, nil, details)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(ctx, slog.LevelInfo, action, msg, nil, details)
}

// Warn writes a WARN line; used for conditions that are expected and recovered from.
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.emit(ctx, slog.LevelWarn, action, msg, nil, details)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	l.emit(ctx, slog.LevelError, action, msg, err, details)
}

func (l *Logger) emit(ctx context.Context, level slog.Level, action, msg string, err error, details any) {
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attrs := make([]slog.Attr, 0, 6)
	attrs = append(attrs, slog.String("action", safeAction(action)))
	if id := requestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id := deliveryID(ctx); id != "" {
		attrs = append(attrs, slog.String("delivery_id", id))
	}
	if details != nil {
		attrs = append(attrs, slog.Any("details", details))
	}
	if err != nil {
		attrs = append(attrs, slog.Group("error",
			slog.String("msg", strings.TrimSpace(err.Error())),
			slog.String("stack", string(debug.Stack())),
		))
	}

	l.slog.LogAttrs(ctx, level, strings.TrimSpace(msg), attrs...)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID  ctxKey = "courier_request_id"
	ctxKeyDeliveryID ctxKey = "courier_delivery_id"
)

// WithRequestID returns a new context carrying request_id.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithDeliveryID returns a new context carrying delivery_id.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyDeliveryID, id)
}

// RequestID extracts request_id from ctx (if any).
func RequestID(ctx context.Context) string {
	return requestID(ctx)
}

func requestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

func deliveryID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyDeliveryID).(string); ok {
		return v
	}
	return ""
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
