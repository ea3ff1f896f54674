// Package notify delivers driver-facing messages and screen changes. The
// headless agent renders both as log lines; tests use the recorders.
package notify

import (
	"context"
	"sync"

	"courier-driver/internal/general/logger"
)

// Level of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// LogNotifier writes each notification as a structured log line.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier { return &LogNotifier{logger: log} }

func (n *LogNotifier) Success(ctx context.Context, msg string) {
	n.logger.Info(ctx, "notify_success", msg, nil)
}

func (n *LogNotifier) Error(ctx context.Context, msg string) {
	n.logger.Warn(ctx, "notify_error", msg, nil)
}

func (n *LogNotifier) Info(ctx context.Context, msg string) {
	n.logger.Info(ctx, "notify_info", msg, nil)
}

// LogNavigator records the active route and logs every change.
type LogNavigator struct {
	logger *logger.Logger

	mu    sync.RWMutex
	route string
}

func NewLogNavigator(log *logger.Logger) *LogNavigator { return &LogNavigator{logger: log, route: "/"} }

func (n *LogNavigator) Navigate(ctx context.Context, route string) {
	n.mu.Lock()
	prev := n.route
	n.route = route
	n.mu.Unlock()
	n.logger.Info(ctx, "navigate", "Screen changed", map[string]any{"from": prev, "to": route})
}

// Route is the current screen.
func (n *LogNavigator) Route() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.route
}
