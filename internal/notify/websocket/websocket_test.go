package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackguard/extension/pkg/core"
)

// Compile-time interface check.
var _ core.Notifier = (*Notifier)(nil)

type messageLog struct {
	mu       sync.Mutex
	messages []Envelope
	secrets  []string
}

func (m *messageLog) add(env Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

// testServer upgrades to WebSocket and records every envelope it receives.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.mu.Lock()
		ml.secrets = append(ml.secrets, r.URL.Query().Get("secret"))
		ml.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, ml
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNotifier_SendsHelloThenOverlay(t *testing.T) {
	srv, ml := testServer(t)

	n := New(Config{URL: wsURL(srv), Secret: "s3cret", Server: "test", Version: "1.0"}, nil)
	require.NoError(t, n.Connect())
	defer n.Close()

	n.Broadcast(core.Overlay{
		Duration: time.Minute,
		Color:    core.ColorRed,
		Position: core.Position3D{X: 1, Y: 2, Z: 3},
		Shape:    core.ShapeText,
		Text:     "Workcart emergency destroyed",
	})

	require.Eventually(t, func() bool { return len(ml.all()) >= 2 }, 2*time.Second, 10*time.Millisecond)

	msgs := ml.all()
	assert.Equal(t, TypeHello, msgs[0].Type)
	assert.Equal(t, TypeOverlay, msgs[1].Type)

	var hello Hello
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &hello))
	assert.Equal(t, "test", hello.Server)

	var overlay OverlayMessage
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &overlay))
	assert.Equal(t, core.ShapeText, overlay.Shape)
	assert.Equal(t, "Workcart emergency destroyed", overlay.Text)
	assert.Equal(t, int64(60000), overlay.DurationMs)
	assert.Equal(t, 3.0, overlay.Position.Z)

	ml.mu.Lock()
	assert.Equal(t, "s3cret", ml.secrets[0])
	ml.mu.Unlock()
}

func TestNotifier_ConnectFailsOnBadURL(t *testing.T) {
	n := New(Config{URL: "ws://127.0.0.1:1/none"}, nil)

	err := n.Connect()

	assert.Error(t, err)
}

func TestNotifier_CloseIsIdempotent(t *testing.T) {
	srv, _ := testServer(t)

	n := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, n.Connect())

	assert.NoError(t, n.Close())
	assert.NoError(t, n.Close())
}

func TestNotifier_BroadcastBeforeConnectDoesNotBlock(t *testing.T) {
	n := New(Config{URL: "ws://unused"}, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < outboxSize+10; i++ {
			n.Broadcast(core.Overlay{Shape: core.ShapeSphere})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked")
	}
}

func TestNotifier_RedialsAndReplaysHello(t *testing.T) {
	ml := &messageLog{}
	var mu sync.Mutex
	accepted := 0

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		mu.Lock()
		accepted++
		first := accepted == 1
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(msg, &env) == nil {
				ml.add(env)
			}
			if first {
				// drop the first session right after the hello
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	n := New(Config{URL: wsURL(srv), Server: "test"}, nil)
	n.link.backoff = 10 * time.Millisecond
	require.NoError(t, n.Connect())
	defer n.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return accepted >= 2
	}, 2*time.Second, 10*time.Millisecond)

	n.Broadcast(core.Overlay{Shape: core.ShapeSphere, Radius: 10})

	require.Eventually(t, func() bool {
		for _, env := range ml.all() {
			if env.Type == TypeOverlay {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	hellos := 0
	for _, env := range ml.all() {
		if env.Type == TypeHello {
			hellos++
		}
	}
	assert.Equal(t, 2, hellos)
}
