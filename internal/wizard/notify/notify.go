// Package notify delivers user-visible wizard notifications. The wizard only
// sees the Notifier interface; the UI drains a per-session inbox.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// DefaultInboxSize caps undrained notifications per session.
const DefaultInboxSize = 32

type Notification struct {
	ID        uint64    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifier interface {
	NotifySuccess(ctx context.Context, sessionID, message string)
	NotifyError(ctx context.Context, sessionID, message string)
	NotifyInfo(ctx context.Context, sessionID, message string)
}

// Inbox buffers notifications per session until the UI drains them. When a
// session's queue is full the oldest notification is dropped.
type Inbox struct {
	mu     sync.Mutex
	queues map[string][]Notification
	size   int
	seq    uint64
	now    func() time.Time
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{queues: make(map[string][]Notification), size: size, now: time.Now}
}

func (i *Inbox) NotifySuccess(ctx context.Context, sessionID, message string) {
	i.push(sessionID, LevelSuccess, message)
}

func (i *Inbox) NotifyError(ctx context.Context, sessionID, message string) {
	i.push(sessionID, LevelError, message)
}

func (i *Inbox) NotifyInfo(ctx context.Context, sessionID, message string) {
	i.push(sessionID, LevelInfo, message)
}

func (i *Inbox) push(sessionID string, level Level, message string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	q := append(i.queues[sessionID], Notification{
		ID:        i.seq,
		Level:     level,
		Message:   message,
		CreatedAt: i.now(),
	})
	if len(q) > i.size {
		q = q[len(q)-i.size:]
	}
	i.queues[sessionID] = q
}

// Drain returns and clears the session's pending notifications, oldest first.
func (i *Inbox) Drain(sessionID string) []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	q := i.queues[sessionID]
	delete(i.queues, sessionID)
	if q == nil {
		return []Notification{}
	}
	return q
}

// Forget drops a session's queue.
func (i *Inbox) Forget(sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.queues, sessionID)
}

// Logging decorates a Notifier with a structured log line per notification.
type Logging struct {
	next   Notifier
	logger *slog.Logger
}

func WithLogging(next Notifier, logger *slog.Logger) *Logging {
	return &Logging{next: next, logger: logger}
}

func (l *Logging) NotifySuccess(ctx context.Context, sessionID, message string) {
	l.log(ctx, slog.LevelInfo, LevelSuccess, sessionID, message)
	l.next.NotifySuccess(ctx, sessionID, message)
}

func (l *Logging) NotifyError(ctx context.Context, sessionID, message string) {
	l.log(ctx, slog.LevelWarn, LevelError, sessionID, message)
	l.next.NotifyError(ctx, sessionID, message)
}

func (l *Logging) NotifyInfo(ctx context.Context, sessionID, message string) {
	l.log(ctx, slog.LevelDebug, LevelInfo, sessionID, message)
	l.next.NotifyInfo(ctx, sessionID, message)
}

func (l *Logging) log(ctx context.Context, lvl slog.Level, level Level, sessionID, message string) {
	if l.logger == nil {
		return
	}
	l.logger.Log(ctx, lvl, "wizard notification",
		"session_id", sessionID,
		"kind", string(level),
		"message", message,
	)
}
