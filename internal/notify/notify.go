// Package notify holds the notifier implementations handed to the
// synchronization layer: a console notifier that prints toast-style lines,
// and a logging notifier.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Console prints one line per notification.
//
//	✔ Student created successfully!
//	✘ Failed to delete student
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole writes notifications to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) NotifySuccess(msg string) {
	c.write("✔", msg)
}

func (c *Console) NotifyError(msg string) {
	c.write("✘", msg)
}

func (c *Console) write(icon, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.w, "%s %s\n", icon, msg)
}

// Log turns notifications into log records.
type Log struct {
	Logger *slog.Logger
}

func (l Log) NotifySuccess(msg string) {
	l.Logger.Info(msg, slog.String("notification", "success"))
}

func (l Log) NotifyError(msg string) {
	l.Logger.Warn(msg, slog.String("notification", "error"))
}

// Multi fans a notification out to several notifiers.
type Multi []interface {
	NotifySuccess(msg string)
	NotifyError(msg string)
}

func (m Multi) NotifySuccess(msg string) {
	for _, n := range m {
		n.NotifySuccess(msg)
	}
}

func (m Multi) NotifyError(msg string) {
	for _, n := range m {
		n.NotifyError(msg)
	}
}
