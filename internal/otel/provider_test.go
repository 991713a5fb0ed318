package otel

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"

	"github.com/trackguard/extension/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSink(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "collision-guard", BatchTimeout: time.Second})

	assert.Error(t, err)
}

func TestNew_ExportsLogsAndCounters(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "collision-guard",
		BatchTimeout:   time.Second,
		MetricInterval: time.Hour,
		Sink:           &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	logger := slog.New(otelslog.NewHandler("test", otelslog.WithLoggerProvider(p.LoggerProvider())))
	logger.Warn("Workcarts unusually close (5.00m)")

	incidents, err := otel.Meter("test").Int64Counter("monitor.incidents")
	require.NoError(t, err)
	incidents.Add(context.Background(), 1)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "Workcarts unusually close")
	assert.Contains(t, buf.String(), "monitor.incidents")
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFromSettings(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromSettings(config.OTelConfig{
		Enabled:        true,
		ServiceName:    "svc",
		BatchTimeout:   3 * time.Second,
		Endpoint:       "collector:4318",
		Insecure:       true,
		MetricInterval: 10 * time.Second,
	}, &buf)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, 3*time.Second, cfg.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.MetricInterval)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Same(t, &buf, cfg.Sink)
}
