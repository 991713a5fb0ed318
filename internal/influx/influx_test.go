package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackguard/extension/internal/config"
	"github.com/trackguard/extension/pkg/core"
)

// Compile-time interface checks
var (
	_ core.Sink   = (*Sink)(nil)
	_ PointWriter = (*Manager)(nil)
)

type capturedPoint struct {
	line string
}

type recordingWriter struct {
	points []capturedPoint
}

func (r *recordingWriter) WritePoint(_ context.Context, p *influxdb2_write.Point) error {
	r.points = append(r.points, capturedPoint{influxdb2_write.PointToLineProtocol(p, time.Nanosecond)})
	return nil
}

var at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSink_SpeedCorrection(t *testing.T) {
	w := &recordingWriter{}
	s := NewSink(w, "eu-1")

	require.NoError(t, s.RecordSpeedCorrection(&core.SpeedCorrection{
		VehicleID:     7,
		Time:          at,
		PreviousSpeed: 20,
		Speed:         10,
		Position:      core.Position3D{X: 1, Y: 2, Z: 3},
	}))

	require.Len(t, w.points, 1)
	line := w.points[0].line
	assert.True(t, strings.HasPrefix(line, "speed_correction,server=eu-1,vehicle=7 "), line)
	assert.Contains(t, line, "previous_speed=20")
	assert.Contains(t, line, "speed=10")
	assert.Contains(t, line, "z=3")
}

func TestSink_ProximityWarning(t *testing.T) {
	w := &recordingWriter{}
	s := NewSink(w, "")
	id := uuid.New()

	require.NoError(t, s.RecordProximityWarning(&core.ProximityWarning{
		SessionID: id,
		VehicleID: 3,
		Time:      at,
		Distance:  5.5,
		Duration:  10 * time.Second,
	}))

	require.Len(t, w.points, 1)
	line := w.points[0].line
	assert.True(t, strings.HasPrefix(line, "proximity_warning,vehicle=3 "), line)
	assert.Contains(t, line, "distance=5.5")
	assert.Contains(t, line, "duration_ms=10000i")
	assert.Contains(t, line, id.String())
}

func TestSink_Incident(t *testing.T) {
	w := &recordingWriter{}
	s := NewSink(w, "")

	require.NoError(t, s.RecordIncident(&core.Incident{
		ID:        uuid.New(),
		VehicleID: 1,
		OtherID:   2,
		Time:      at,
		Distance:  3,
		Lines:     []string{"a", "b"},
	}))

	require.Len(t, w.points, 1)
	line := w.points[0].line
	assert.True(t, strings.HasPrefix(line, "incident,other=2,vehicle=1 "), line)
	assert.Contains(t, line, "report_lines=2i")
}

func TestManager_BackupWriterWhenUnreachable(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(config.InfluxConfig{URL: "http://127.0.0.1:1", Org: "trackguard", Bucket: "collision_guard"},
		zerolog.Nop(), backup)

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.Online())

	s := NewSink(m, "")
	require.NoError(t, s.RecordIncident(&core.Incident{ID: uuid.New(), VehicleID: 9, OtherID: 4, Time: at, Distance: 1}))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	assert.Contains(t, string(data), "incident,other=4,vehicle=9")
}

func TestManager_WritePointBeforeConnect(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")

	err := m.WritePoint(context.Background(), influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1))
	assert.Error(t, err)
	assert.NoError(t, m.Close())
}

func TestManager_BackupToBuffer(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	m.backup = gzip.NewWriter(&buf)

	require.NoError(t, NewSink(m, "").RecordSpeedCorrection(&core.SpeedCorrection{VehicleID: 1, Time: at, Speed: 1}))
	require.NoError(t, m.Close())

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(data), "speed_correction,vehicle=1")
}
