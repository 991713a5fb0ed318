package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_FileOnly_NoConsole(t *testing.T) {
	var fileBuf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &fileBuf, Level: "info"})
	m.Logger().Info("hello file")

	assert.Contains(t, fileBuf.String(), "hello file", "log should appear in file")
	assert.Contains(t, fileBuf.String(), "Logging initialized")
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Console: &console, File: &file, Level: "info"})
	m.Logger().Warn("Workcarts unusually close (5.00m)")

	assert.Contains(t, console.String(), "Workcarts unusually close")
	assert.Contains(t, file.String(), "Workcarts unusually close")
}

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Level: "debug"})

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	output := buf.String()
	assert.Contains(t, output, "debug msg")
	assert.Contains(t, output, "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Level: "info"})

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(Options{File: &buf1, Level: "info"})
	m.Logger().Info("first")

	m.Setup(Options{File: &buf2, Level: "info"})
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second", "old file should not receive new logs")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_GraylogReceivesJSON(t *testing.T) {
	var gelfBuf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Graylog: &gelfBuf, Level: "info"})

	m.Logger().Error("Workcart emergency destroyed", "vehicle", 7)

	lines := strings.Split(strings.TrimSpace(gelfBuf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "Workcart emergency destroyed", entry["msg"])
	assert.Equal(t, float64(7), entry["vehicle"])
}

func TestSetup_SessionsStampWarnings(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{
		File:         &buf,
		Level:        "debug",
		Sessions:     func() int { return 3 },
		SessionLevel: slog.LevelWarn,
	})

	m.Logger().Debug("session tick")
	m.Logger().Warn("Workcarts unusually close")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "setup line plus two records")
	assert.NotContains(t, lines[1], "activeSessions")
	assert.Contains(t, lines[2], "activeSessions=3")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	logger := m.Logger()
	assert.Equal(t, slog.Default(), logger)
}

func TestFlush_NilProvider(t *testing.T) {
	m := NewSlogManager()
	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

func TestWriteLog_AllLevels(t *testing.T) {
	levels := []struct {
		level    string
		contains string
	}{
		{"debug", "debug message"},
		{"info", "info message"},
		{"warn", "warn message"},
		{"error", "error message"},
		{"unknown", "unknown message"}, // defaults to info
	}

	for _, tt := range levels {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(Options{File: &buf, Level: "debug"})

			m.WriteLog("testFunc", tt.level+" message", tt.level)

			output := buf.String()
			assert.Contains(t, output, tt.contains)
			assert.Contains(t, output, "testFunc")
		})
	}
}

func TestWriteLog_NilLogger(t *testing.T) {
	m := NewSlogManager()
	// Should not panic
	m.WriteLog("fn", "data", "info")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	f := newFanout(
		slog.NewTextHandler(&buf1, nil),
		nil,
		slog.NewTextHandler(&buf2, nil),
	)
	require.Len(t, f, 2)

	slog.New(f).Info("Workcart emergency slowed", "vehicle", 4)

	assert.Contains(t, buf1.String(), "vehicle=4")
	assert.Contains(t, buf2.String(), "vehicle=4")
}

func TestFanout_Enabled(t *testing.T) {
	info := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	ctx := context.Background()

	assert.False(t, newFanout(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newFanout(info, debug).Enabled(ctx, slog.LevelDebug))
	assert.False(t, newFanout().Enabled(ctx, slog.LevelError))
}

func TestFanout_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(slog.NewTextHandler(&buf, nil))

	slog.New(f.WithAttrs([]slog.Attr{slog.String("component", "monitor")}).WithGroup("session")).
		Info("expired", "vehicle", 2)

	assert.Contains(t, buf.String(), "component=monitor")
	assert.Contains(t, buf.String(), "session.vehicle=2")
	assert.Equal(t, f, f.WithGroup(""))
}

func TestFlush_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter, just validates non-nil path
	m := NewSlogManager()

	var buf bytes.Buffer
	m.Setup(Options{File: &buf, Level: "info", Provider: provider})

	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

// errorHandler is a slog.Handler that always returns an error from Handle.
type errorHandler struct {
	slog.Handler
}

func (h *errorHandler) Handle(_ context.Context, _ slog.Record) error {
	return errors.New("handler error")
}

func (h *errorHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func TestFanout_FailingSinkDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(&errorHandler{}, slog.NewTextHandler(&buf, nil))

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0)
	assert.EqualError(t, f.Handle(context.Background(), r), "handler error")
	assert.Contains(t, buf.String(), "still delivered")
}

func TestSessionHandler(t *testing.T) {
	var buf bytes.Buffer
	active := 0
	h := NewSessionHandler(slog.NewTextHandler(&buf, nil), func() int { return active }, slog.LevelInfo)
	logger := slog.New(h).With("component", "monitor")

	active = 2
	logger.Info("first")
	active = 0
	logger.Info("second")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "activeSessions=2")
	assert.Contains(t, lines[0], "component=monitor")
	assert.Contains(t, lines[1], "activeSessions=0")
}

func TestSessionHandler_NilCounter(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewSessionHandler(slog.NewTextHandler(&buf, nil), nil, slog.LevelInfo)).Info("plain")
	assert.NotContains(t, buf.String(), "activeSessions")
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Level: "info", Provider: provider})

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
}
