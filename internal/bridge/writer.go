package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/trackguard/extension/pkg/core"
)

// Writer serializes outbound lines. It is the host-side world.Outbox and can
// also forward overlays to the host for drawing.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewWriter wraps w. logger may be nil.
func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{w: w, logger: logger.With("component", "bridge")}
}

// Send writes one outbound command.
func (w *Writer) Send(command string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	return w.writeLine(Outbound{Command: command, Args: args})
}

// Reply writes the answer to a request.
func (w *Writer) Reply(r Reply) error {
	return w.writeLine(r)
}

func (w *Writer) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding line: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("error writing line: %w", err)
	}
	return nil
}

// SetSpeed implements world.Outbox.
func (w *Writer) SetSpeed(vehicleID uint64, speed float64) {
	if err := w.Send(CmdSetSpeed, strconv.FormatUint(vehicleID, 10), speed); err != nil {
		w.logger.Error("Failed to send speed", "vehicle", vehicleID, "error", err)
	}
}

// Destroy implements world.Outbox.
func (w *Writer) Destroy(vehicleID uint64, info core.DamageInfo) {
	if err := w.Send(CmdDestroy, strconv.FormatUint(vehicleID, 10), string(info.Type)); err != nil {
		w.logger.Error("Failed to send destroy", "vehicle", vehicleID, "error", err)
	}
}

// Broadcast implements core.Notifier by asking the host to draw the overlay.
func (w *Writer) Broadcast(o core.Overlay) {
	if err := w.Send(CmdDraw, string(o.Shape), hostOverlay(o)); err != nil {
		w.logger.Error("Failed to send overlay", "error", err)
	}
}

type overlayArgs struct {
	Seconds  float64         `json:"seconds"`
	Color    [3]float32      `json:"color"`
	Position core.Position3D `json:"position"`
	Text     string          `json:"text,omitempty"`
	Radius   float64         `json:"radius,omitempty"`
}

func hostOverlay(o core.Overlay) overlayArgs {
	return overlayArgs{
		Seconds:  o.Duration.Seconds(),
		Color:    [3]float32{o.Color.R, o.Color.G, o.Color.B},
		Position: o.Position,
		Text:     o.Text,
		Radius:   o.Radius,
	}
}
