package bridge

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/trackguard/extension/internal/dispatcher"
)

const maxLineSize = 1 << 20

// Dispatcher routes decoded events.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Runner owns the goroutine every event and tick runs on.
type Runner interface {
	Run(ctx context.Context, period time.Duration, work <-chan func()) error
}

// Dependencies holds all dependencies for the bridge
type Dependencies struct {
	In         io.Reader
	Out        *Writer
	Dispatcher Dispatcher
	Runner     Runner
	// Period is the wall-clock tick period. Zero leaves time to :TICK:.
	Period time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// Bridge reads commands from the host and runs them on the Runner's loop.
type Bridge struct {
	deps   Dependencies
	logger *slog.Logger
}

// New creates a Bridge.
func New(deps Dependencies) *Bridge {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Bridge{deps: deps, logger: deps.Logger.With("component", "bridge")}
}

// Run serves until the input ends or ctx is cancelled. End of input is a
// clean shutdown.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan func())
	readErr := make(chan error, 1)
	go func() {
		readErr <- b.read(ctx, work)
		close(work)
	}()

	err := b.deps.Runner.Run(ctx, b.deps.Period, work)
	cancel()

	select {
	case rerr := <-readErr:
		if rerr != nil {
			return rerr
		}
	default:
		// reader is still blocked on input; it exits with the process
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bridge) read(ctx context.Context, work chan<- func()) error {
	scanner := bufio.NewScanner(b.deps.In)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := Decode(line)
		if err != nil {
			b.logger.Warn("Dropping malformed line", "error", err)
			continue
		}
		ev, err := msg.Event(b.deps.Now())
		if err != nil {
			b.fail(msg, err)
			continue
		}

		select {
		case work <- func() { b.handle(msg, ev) }:
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}

func (b *Bridge) handle(msg Message, ev dispatcher.Event) {
	result, err := b.deps.Dispatcher.Dispatch(ev)
	if err != nil {
		b.fail(msg, err)
		return
	}
	if msg.ID == "" {
		return
	}
	if err := b.deps.Out.Reply(Reply{ID: msg.ID, Command: msg.Command, Result: result}); err != nil {
		b.logger.Error("Failed to write reply", "command", msg.Command, "error", err)
	}
}

func (b *Bridge) fail(msg Message, err error) {
	b.logger.Error("Command failed", "command", msg.Command, "error", err)
	if msg.ID == "" {
		return
	}
	if werr := b.deps.Out.Reply(Reply{ID: msg.ID, Command: msg.Command, Error: err.Error()}); werr != nil {
		b.logger.Error("Failed to write reply", "command", msg.Command, "error", werr)
	}
}
