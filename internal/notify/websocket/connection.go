package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	outboxSize = 1_000
	maxRedials = 10
	maxBackoff = 30 * time.Second
	writeWait  = 10 * time.Second
)

// link is the dashboard connection. One supervisor goroutine owns the
// socket: it writes the outbox, redials when the socket drops and
// replays the hello after every dial.
type link struct {
	outbox chan []byte
	stop   chan struct{}
	done   chan struct{} // closed when the supervisor exits
	once   sync.Once

	target  string
	hello   []byte
	backoff time.Duration
	log     *slog.Logger
}

func newLink(log *slog.Logger) *link {
	return &link{
		outbox:  make(chan []byte, outboxSize),
		stop:    make(chan struct{}),
		backoff: time.Second,
		log:     log,
	}
}

// dial makes the first connection synchronously so a bad address is
// reported to the caller; later drops are handled in the background.
func (l *link) dial(rawURL, secret string, hello []byte) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	l.target = u.String()
	l.hello = hello

	conn, err := l.open()
	if err != nil {
		return err
	}
	l.done = make(chan struct{})
	go l.supervise(conn)
	return nil
}

func (l *link) open() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(l.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if err := write(conn, l.hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write hello: %w", err)
	}
	return conn, nil
}

func (l *link) supervise(conn *ws.Conn) {
	defer close(l.done)
	for conn != nil {
		err := l.pump(conn)
		if err == nil {
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
		_ = conn.Close()
		l.log.Warn("Dashboard connection lost", "error", err)
		conn = l.redial()
	}
}

// pump writes queued messages until the socket fails (non-nil error)
// or the link is closed (nil).
func (l *link) pump(conn *ws.Conn) error {
	lost := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				lost <- err
				return
			}
			var env Envelope
			if json.Unmarshal(msg, &env) == nil {
				l.log.Debug("Dashboard message ignored", "type", env.Type)
			}
		}
	}()

	for {
		select {
		case <-l.stop:
			return nil
		case err := <-lost:
			return err
		case data := <-l.outbox:
			if err := write(conn, data); err != nil {
				return err
			}
		}
	}
}

// redial returns nil when the link is closed or every attempt failed.
func (l *link) redial() *ws.Conn {
	wait := l.backoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-l.stop:
			return nil
		case <-time.After(wait):
		}
		conn, err := l.open()
		if err == nil {
			l.log.Info("Dashboard reconnected", "attempt", attempt)
			return conn
		}
		l.log.Warn("Dashboard redial failed", "attempt", attempt, "error", err)
		wait = min(wait*2, maxBackoff)
	}
	l.log.Error("Giving up on dashboard", "attempts", maxRedials)
	return nil
}

func write(conn *ws.Conn, data []byte) error {
	if data == nil {
		return nil
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// send never blocks; messages past the outbox capacity are dropped.
func (l *link) send(data []byte) {
	select {
	case l.outbox <- data:
	default:
		l.log.Warn("Dashboard outbox full, dropping overlay")
	}
}

func (l *link) close() error {
	l.once.Do(func() { close(l.stop) })
	if l.done != nil {
		<-l.done
	}
	return nil
}
