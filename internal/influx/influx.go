// Package influx ships collision diagnostics to InfluxDB. While the server is
// unreachable points are appended, as line protocol, to a gzip backup file
// that can be replayed into the bucket later.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/trackguard/extension/internal/config"
)

const pingTimeout = 5 * time.Second

// Manager owns the write API for the diagnostics bucket, or the backup file
// when the server did not answer on Connect.
type Manager struct {
	cfg        config.InfluxConfig
	log        zerolog.Logger
	backupPath string

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backup     *gzip.Writer
	backupFile io.Closer
}

// NewManager creates a Manager. backupPath receives points while InfluxDB is
// offline.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{cfg: cfg, log: log, backupPath: backupPath}
}

// Connect pings the server and opens the bucket's write API. An unreachable
// server is not an error: the backup file takes its place.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(m.cfg.URL, m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	running, err := m.client.Ping(pingCtx)
	if err != nil || !running {
		m.log.Warn().Err(err).Str("url", m.cfg.URL).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errs <-chan error) {
		for err := range errs {
			m.log.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.log.Info().Str("url", m.cfg.URL).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backup != nil {
		return nil
	}
	f, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = f
	m.backup = gzip.NewWriter(f)
	return nil
}

// Online reports whether points go to the server rather than the backup.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer != nil
}

// WritePoint queues a point on the write API or appends it to the backup.
func (m *Manager) WritePoint(_ context.Context, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.writer != nil:
		m.writer.WritePoint(point)
		return nil
	case m.backup != nil:
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("influxDB not connected")
	}
}

// Close flushes pending points and closes the backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.backup == nil {
		return nil
	}
	if err := m.backup.Close(); err != nil {
		return fmt.Errorf("error closing InfluxDB backup file: %w", err)
	}
	if m.backupFile != nil {
		return m.backupFile.Close()
	}
	return nil
}
