// Package audit persists the monitor's diagnostics so incidents can be
// reviewed after the fact.
package audit

import (
	"context"
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/trackguard/extension/internal/geo"
	"github.com/trackguard/extension/internal/worker"
	"github.com/trackguard/extension/pkg/core"
)

// Dependencies holds all dependencies for the audit store.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
	// Georef, when set, adds a web mercator position to every row.
	Georef *geo.Georef
	// MaxPending bounds each table's unflushed rows; 0 means unbounded.
	MaxPending int
}

// Store implements core.Sink. Records are queued and written in batches by
// Flush, which a worker.Manager calls periodically.
type Store struct {
	deps Dependencies

	incidents   *pending[Incident]
	corrections *pending[SpeedCorrection]
	warnings    *pending[ProximityWarning]
}

// NewStore creates a Store. Call Migrate before the first Flush.
func NewStore(deps Dependencies) *Store {
	return &Store{
		deps:        deps,
		incidents:   newPending[Incident](deps.MaxPending),
		corrections: newPending[SpeedCorrection](deps.MaxPending),
		warnings:    newPending[ProximityWarning](deps.MaxPending),
	}
}

// Migrate creates the audit tables.
func (s *Store) Migrate() error {
	return Migrate(s.deps.DB)
}

// Register adds the store's flush to a worker.
func (s *Store) Register(w *worker.Manager) {
	w.Add("audit", s.Flush)
}

// RecordSpeedCorrection queues a speed correction.
func (s *Store) RecordSpeedCorrection(e *core.SpeedCorrection) error {
	s.corrections.add(SpeedCorrection{
		Time:          e.Time,
		VehicleID:     e.VehicleID,
		PreviousSpeed: e.PreviousSpeed,
		Speed:         e.Speed,
		Position:      geo.PointZ(e.Position),
		Mercator:      s.mercator(e.Position),
	})
	return nil
}

// RecordProximityWarning queues a proximity warning.
func (s *Store) RecordProximityWarning(e *core.ProximityWarning) error {
	s.warnings.add(ProximityWarning{
		SessionID:  e.SessionID,
		Time:       e.Time,
		VehicleID:  e.VehicleID,
		Distance:   e.Distance,
		DurationMs: e.Duration.Milliseconds(),
		Position:   geo.PointZ(e.Position),
		Mercator:   s.mercator(e.Position),
	})
	return nil
}

// RecordIncident queues an incident.
func (s *Store) RecordIncident(e *core.Incident) error {
	s.incidents.add(Incident{
		ID:        e.ID,
		Time:      e.Time,
		VehicleID: e.VehicleID,
		OtherID:   e.OtherID,
		Distance:  e.Distance,
		Position:  geo.PointZ(e.Position),
		Mercator:  s.mercator(e.Position),
		Lines:     append([]string(nil), e.Lines...),
	})
	return nil
}

func (s *Store) mercator(p core.Position3D) *geom.Point {
	if s.deps.Georef == nil {
		return nil
	}
	pt := geo.WorldToMercator(*s.deps.Georef, p)
	return &pt
}

// Pending returns the number of queued rows.
func (s *Store) Pending() int {
	return s.incidents.len() + s.corrections.len() + s.warnings.len()
}

// Dropped returns the number of rows discarded because MaxPending was hit.
func (s *Store) Dropped() int {
	return s.incidents.droppedRows() + s.corrections.droppedRows() + s.warnings.droppedRows()
}

// Flush writes every queued row. Rows from a failed batch are requeued.
func (s *Store) Flush(ctx context.Context) error {
	if s.deps.DB == nil {
		return nil
	}
	db := s.deps.DB.WithContext(ctx)

	return errors.Join(
		writeBatch(db, s.incidents, "incidents", s.deps.Logger),
		writeBatch(db, s.corrections, "speed corrections", s.deps.Logger),
		writeBatch(db, s.warnings, "proximity warnings", s.deps.Logger),
	)
}

// writeBatch writes every pending row of one table in a transaction. A failed
// batch is restored for the next flush.
func writeBatch[T any](db *gorm.DB, p *pending[T], name string, log zerolog.Logger) error {
	rows := p.take()
	if rows == nil {
		return nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		if dropped := p.restore(rows); dropped > 0 {
			log.Warn().Int("dropped", dropped).Str("table", name).Msg("Audit backlog full, dropped oldest rows")
		}
		return fmt.Errorf("error creating %s: %w", name, err)
	}

	log.Debug().Int("rows", len(rows)).Str("table", name).Msg("Flushed audit rows")
	return nil
}

// ListIncidents returns the most recent incidents, newest first.
func (s *Store) ListIncidents(ctx context.Context, limit int) ([]Incident, error) {
	if s.deps.DB == nil {
		return nil, ErrDisabled
	}
	var out []Incident
	q := s.deps.DB.WithContext(ctx).Order("time desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	return out, nil
}

// Counts summarises the stored diagnostics.
type Counts struct {
	Incidents         int64
	SpeedCorrections  int64
	ProximityWarnings int64
}

// Count returns the number of stored rows per table.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	var c Counts
	if s.deps.DB == nil {
		return c, ErrDisabled
	}
	db := s.deps.DB.WithContext(ctx)
	if err := db.Model(&Incident{}).Count(&c.Incidents).Error; err != nil {
		return c, fmt.Errorf("counting incidents: %w", err)
	}
	if err := db.Model(&SpeedCorrection{}).Count(&c.SpeedCorrections).Error; err != nil {
		return c, fmt.Errorf("counting speed corrections: %w", err)
	}
	if err := db.Model(&ProximityWarning{}).Count(&c.ProximityWarnings).Error; err != nil {
		return c, fmt.Errorf("counting proximity warnings: %w", err)
	}
	return c, nil
}
