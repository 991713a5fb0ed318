// Package notify delivers debug overlays to privileged observers.
package notify

import (
	"log/slog"

	"github.com/trackguard/extension/pkg/core"
)

// Fanout broadcasts to every wrapped notifier.
type Fanout []core.Notifier

// NewFanout drops nil notifiers.
func NewFanout(notifiers ...core.Notifier) Fanout {
	out := make(Fanout, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Broadcast implements core.Notifier.
func (f Fanout) Broadcast(o core.Overlay) {
	for _, n := range f {
		n.Broadcast(o)
	}
}

// LogNotifier writes overlays to the debug log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Broadcast implements core.Notifier.
func (l LogNotifier) Broadcast(o core.Overlay) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Overlay",
		"shape", o.Shape,
		"text", o.Text,
		"position", o.Position.String(),
		"duration", o.Duration,
	)
}

// Func adapts a function to core.Notifier.
type Func func(core.Overlay)

// Broadcast implements core.Notifier.
func (f Func) Broadcast(o core.Overlay) {
	f(o)
}
