package influx

import (
	"context"
	"strconv"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/trackguard/extension/pkg/core"
)

// PointWriter is the part of Manager the sink needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point *influxdb2_write.Point) error
}

// Sink writes monitor diagnostics as InfluxDB points. It implements core.Sink.
type Sink struct {
	w      PointWriter
	server string
}

// NewSink creates a Sink. server tags every point so several game servers can
// share a bucket.
func NewSink(w PointWriter, server string) *Sink {
	return &Sink{w: w, server: server}
}

func (s *Sink) write(p *influxdb2_write.Point) error {
	if s.server != "" {
		p.AddTag("server", s.server)
	}
	p.SortTags()
	return s.w.WritePoint(context.Background(), p)
}

func addPosition(p *influxdb2_write.Point, pos core.Position3D) {
	p.AddField("x", pos.X)
	p.AddField("y", pos.Y)
	p.AddField("z", pos.Z)
}

// SpeedCorrectionPoint builds the speed_correction point.
func SpeedCorrectionPoint(e *core.SpeedCorrection) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("speed_correction").
		AddTag("vehicle", strconv.FormatUint(e.VehicleID, 10)).
		AddField("previous_speed", e.PreviousSpeed).
		AddField("speed", e.Speed).
		SetTime(e.Time)
	addPosition(p, e.Position)
	return p
}

// ProximityWarningPoint builds the proximity_warning point.
func ProximityWarningPoint(e *core.ProximityWarning) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("proximity_warning").
		AddTag("vehicle", strconv.FormatUint(e.VehicleID, 10)).
		AddField("session", e.SessionID.String()).
		AddField("distance", e.Distance).
		AddField("duration_ms", e.Duration.Milliseconds()).
		SetTime(e.Time)
	addPosition(p, e.Position)
	return p
}

// IncidentPoint builds the incident point.
func IncidentPoint(e *core.Incident) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("incident").
		AddTag("vehicle", strconv.FormatUint(e.VehicleID, 10)).
		AddTag("other", strconv.FormatUint(e.OtherID, 10)).
		AddField("id", e.ID.String()).
		AddField("distance", e.Distance).
		AddField("report_lines", len(e.Lines)).
		SetTime(e.Time)
	addPosition(p, e.Position)
	return p
}

func (s *Sink) RecordSpeedCorrection(e *core.SpeedCorrection) error {
	return s.write(SpeedCorrectionPoint(e))
}

func (s *Sink) RecordProximityWarning(e *core.ProximityWarning) error {
	return s.write(ProximityWarningPoint(e))
}

func (s *Sink) RecordIncident(e *core.Incident) error {
	return s.write(IncidentPoint(e))
}
