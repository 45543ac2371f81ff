// Package toast collects short user-facing notifications. Handlers push
// messages during a request and the next page render drains them.
package toast

import (
	"context"
	"log/slog"
	"sync"
)

// Level classifies a toast for styling.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Toast is one notification.
type Toast struct {
	Level   Level
	Message string
}

// Presenter receives user-facing notifications.
type Presenter interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
	Warning(ctx context.Context, message string)
	Info(ctx context.Context, message string)
}

// Queue is a Presenter that buffers toasts until drained, one queue per
// user session.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) push(level Level, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append(q.toasts, Toast{Level: level, Message: message})
}

func (q *Queue) Success(_ context.Context, message string) { q.push(LevelSuccess, message) }
func (q *Queue) Error(_ context.Context, message string)   { q.push(LevelError, message) }
func (q *Queue) Warning(_ context.Context, message string) { q.push(LevelWarning, message) }
func (q *Queue) Info(_ context.Context, message string)    { q.push(LevelInfo, message) }

// Drain returns the pending toasts and clears the queue.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	toasts := q.toasts
	q.toasts = nil
	return toasts
}

// Pending returns the number of queued toasts.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// LogPresenter writes notifications to the structured log. The background
// worker uses it where no user is watching.
type LogPresenter struct{}

func (LogPresenter) Success(ctx context.Context, message string) {
	slog.InfoContext(ctx, "Notification", "level", LevelSuccess, "message", message)
}

func (LogPresenter) Error(ctx context.Context, message string) {
	slog.ErrorContext(ctx, "Notification", "level", LevelError, "message", message)
}

func (LogPresenter) Warning(ctx context.Context, message string) {
	slog.WarnContext(ctx, "Notification", "level", LevelWarning, "message", message)
}

func (LogPresenter) Info(ctx context.Context, message string) {
	slog.InfoContext(ctx, "Notification", "level", LevelInfo, "message", message)
}
