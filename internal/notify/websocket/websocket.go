// Package websocket streams overlays to an operator dashboard over a
// WebSocket client connection.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/trackguard/extension/pkg/core"
)

// Message types
const (
	TypeHello   = "hello"
	TypeOverlay = "overlay"
)

// Envelope wraps every message on the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hello identifies the stream to the dashboard.
type Hello struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// OverlayMessage is the wire form of core.Overlay.
type OverlayMessage struct {
	Shape      core.Shape      `json:"shape"`
	Text       string          `json:"text,omitempty"`
	Radius     float64         `json:"radius,omitempty"`
	Position   core.Position3D `json:"position"`
	Color      core.Color      `json:"color"`
	DurationMs int64           `json:"durationMs"`
	SentAt     time.Time       `json:"sentAt"`
}

// Config holds WebSocket notifier configuration.
type Config struct {
	URL     string
	Secret  string
	Server  string
	Version string
}

// Notifier implements core.Notifier.
type Notifier struct {
	link *link
	cfg  Config
	now  func() time.Time
}

// New creates a notifier. Call Connect before broadcasting.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		link: newLink(logger),
		cfg:  cfg,
		now:  time.Now,
	}
}

// Connect dials the dashboard and announces the stream.
func (n *Notifier) Connect() error {
	hello, err := marshalEnvelope(TypeHello, Hello{Server: n.cfg.Server, Version: n.cfg.Version})
	if err != nil {
		return err
	}
	return n.link.dial(n.cfg.URL, n.cfg.Secret, hello)
}

// Close disconnects from the dashboard.
func (n *Notifier) Close() error {
	return n.link.close()
}

// Broadcast queues the overlay for delivery. It never blocks.
func (n *Notifier) Broadcast(o core.Overlay) {
	data, err := marshalEnvelope(TypeOverlay, OverlayMessage{
		Shape:      o.Shape,
		Text:       o.Text,
		Radius:     o.Radius,
		Position:   o.Position,
		Color:      o.Color,
		DurationMs: o.Duration.Milliseconds(),
		SentAt:     n.now().UTC(),
	})
	if err != nil {
		n.link.log.Error("Failed to encode overlay", "error", err)
		return
	}
	n.link.send(data)
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
