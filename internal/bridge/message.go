// Package bridge speaks the line-delimited JSON protocol between the host and
// the extension. Each line carries one command; inbound commands are turned
// into dispatcher events and outbound commands mirror the core's mutations.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trackguard/extension/internal/dispatcher"
)

// Outbound commands.
const (
	CmdSetSpeed = ":SETSPEED:"
	CmdDestroy  = ":DESTROY:"
	CmdDraw     = ":DDRAW:"
)

// ErrEmptyCommand is returned for a line without a command.
var ErrEmptyCommand = errors.New("missing command")

// Message is one inbound line. Args may be any JSON values; strings are
// passed through as-is and everything else as its JSON text.
type Message struct {
	ID      string            `json:"id,omitempty"`
	Command string            `json:"command"`
	Args    []json.RawMessage `json:"args,omitempty"`
}

// Reply answers a Message that carried an ID.
type Reply struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Outbound is a command sent to the host.
type Outbound struct {
	Command string `json:"command"`
	Args    []any  `json:"args"`
}

// Decode parses one protocol line.
func Decode(line []byte) (Message, error) {
	var m Message
	dec := json.NewDecoder(bytes.NewReader(line))
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("error decoding message: %w", err)
	}
	if m.Command == "" {
		return Message{}, ErrEmptyCommand
	}
	return m, nil
}

// Event converts the message into a dispatcher event stamped with now.
func (m Message) Event(now time.Time) (dispatcher.Event, error) {
	args := make([]string, len(m.Args))
	for i, raw := range m.Args {
		s, err := argString(raw)
		if err != nil {
			return dispatcher.Event{}, fmt.Errorf("%w: %s arg %d: %w", dispatcher.ErrBadArgs, m.Command, i, err)
		}
		args[i] = s
	}
	return dispatcher.Event{Command: m.Command, Args: args, Timestamp: now}, nil
}

func argString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	return string(raw), nil
}
