// Package monitor watches colliding track vehicles: it clamps runaway speed,
// escalates unusually close pairs into timed re-check sessions, and
// emergency-destroys a vehicle that ends up critically overlapping another.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trackguard/extension/internal/entity"
	"github.com/trackguard/extension/internal/geo"
	"github.com/trackguard/extension/internal/scheduler"
	"github.com/trackguard/extension/pkg/core"

	"go.opentelemetry.io/otel/metric"
)

// Scheduler is the deferred-callback facility the monitor runs on.
type Scheduler interface {
	NextTick(fn func())
	Once(delay time.Duration, fn func()) *scheduler.Timer
	Repeat(interval time.Duration, count int, fn func()) *scheduler.Timer
}

// Dependencies holds all dependencies for the monitor
type Dependencies struct {
	Scheduler  Scheduler
	Notifier   core.Notifier           // optional
	Sink       core.Sink               // optional
	Controller core.ExternalController // optional
	Logger     *slog.Logger
	Now        func() time.Time
}

// State is the escalation state of one vehicle.
type State int

const (
	StateIdle State = iota
	StateEscalated
)

func (s State) String() string {
	if s == StateEscalated {
		return "escalated"
	}
	return "idle"
}

// Monitor is the proximity/anomaly state machine. Its methods must be called
// from the goroutine that drives the scheduler.
type Monitor struct {
	deps     Dependencies
	logger   *slog.Logger
	accessor *entity.Accessor

	mu       sync.RWMutex
	sessions map[uint64]map[*Session]struct{}

	speedCorrections atomic.Int64
	escalations      atomic.Int64
	incidents        atomic.Int64

	// OTEL metrics
	correctionCounter metric.Int64Counter
	escalationCounter metric.Int64Counter
	incidentCounter   metric.Int64Counter
	activeGauge       metric.Int64ObservableGauge
}

// New creates a Monitor.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Monitor, error) {
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("monitor requires a scheduler")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m := &Monitor{
		deps:     deps,
		logger:   deps.Logger,
		accessor: entity.NewAccessor(deps.Controller, deps.Logger),
		sessions: make(map[uint64]map[*Session]struct{}),
	}

	mtr := meter()
	var err error

	m.correctionCounter, err = mtr.Int64Counter(
		"monitor.speed.corrections",
		metric.WithDescription("Runaway speeds clamped to the rated maximum"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating corrections counter: %w", err)
	}

	m.escalationCounter, err = mtr.Int64Counter(
		"monitor.escalations",
		metric.WithDescription("Monitoring sessions opened after an unusually close contact"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating escalations counter: %w", err)
	}

	m.incidentCounter, err = mtr.Int64Counter(
		"monitor.incidents",
		metric.WithDescription("Vehicles emergency destroyed for critical overlap"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating incidents counter: %w", err)
	}

	m.activeGauge, err = mtr.Int64ObservableGauge(
		"monitor.sessions.active",
		metric.WithDescription("Monitoring sessions currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions gauge: %w", err)
	}

	_, err = mtr.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.activeGauge, int64(m.ActiveSessions()))
			return nil
		},
		m.activeGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering sessions callback: %w", err)
	}

	return m, nil
}

// OnTriggerEntry handles a vehicle starting to overlap another vehicle's
// collision trigger.
func (m *Monitor) OnTriggerEntry(zone core.TriggerZone, entering core.Vehicle) {
	if zone == nil || entering == nil {
		return
	}
	// the host repeats the signal while the vehicle is already inside
	if zone.Contains(entering) {
		return
	}
	owner := zone.Owner()
	if owner == nil {
		return
	}

	m.logger.Debug("Trigger entered", "owner", owner.EntityID(), "entering", entering.EntityID())

	m.deps.Scheduler.NextTick(func() {
		m.CheckSpeed(owner)
		m.CheckSpeed(entering)
	})

	m.deps.Scheduler.Once(InitialCheckDelay, func() {
		m.InitialProximityCheck(owner)
	})
}

// InitialProximityCheck looks for any vehicle within ProximityTolerance of v
// and, when one is found, opens a monitoring session.
func (m *Monitor) InitialProximityCheck(v core.Vehicle) {
	if entity.IsGone(v) {
		return
	}

	frontFound, frontDistance := m.closestInZone(v, v.FrontTrigger(), ProximityTolerance)
	rearFound, rearDistance := m.closestInZone(v, v.RearTrigger(), ProximityTolerance)
	if !frontFound && !rearFound {
		return
	}

	distance := math.Min(frontDistance, rearDistance)
	position := v.Position()
	monitorFor := time.Duration(SessionBudget) * SessionInterval

	s := m.startSession(v)

	m.logger.Warn(
		fmt.Sprintf("Workcarts unusually close (%.2fm) at %s. Monitoring for %s.", distance, position, monitorFor),
		"vehicle", v.EntityID(),
		"distance", distance,
		"position", position.String(),
		"session", s.ID.String(),
	)
	m.overlay(core.ColorYellow, position, fmt.Sprintf("Workcarts unusually close (%.2fm)", distance))

	m.escalations.Add(1)
	m.escalationCounter.Add(context.Background(), 1)

	m.record(func(sink core.Sink) error {
		return sink.RecordProximityWarning(&core.ProximityWarning{
			SessionID: s.ID,
			VehicleID: v.EntityID(),
			Time:      m.deps.Now(),
			Distance:  distance,
			Position:  position,
			Duration:  monitorFor,
		})
	})
}

// CheckTriggers runs the critical-overlap check against both of v's triggers.
func (m *Monitor) CheckTriggers(v core.Vehicle) {
	if entity.IsGone(v) {
		return
	}
	m.CheckZoneForCriticalOverlap(v, v.FrontTrigger())
	m.CheckZoneForCriticalOverlap(v, v.RearTrigger())
}

// closestInZone returns the smallest distance from v to a vehicle inside zone
// that is within tolerance.
func (m *Monitor) closestInZone(v core.Vehicle, zone core.TriggerZone, tolerance float64) (bool, float64) {
	found := false
	closest := math.MaxFloat64
	if zone == nil {
		return false, closest
	}

	position := v.Position()
	for _, content := range zone.Contents() {
		other, ok := content.(core.Vehicle)
		if !ok || other == nil || other.EntityID() == v.EntityID() {
			continue
		}
		if overlapping, distance := geo.Overlapping(position, other.Position(), tolerance); overlapping {
			found = true
			closest = math.Min(closest, distance)
		}
	}
	return found, closest
}

func (m *Monitor) overlay(color core.Color, position core.Position3D, text string) {
	if m.deps.Notifier == nil {
		return
	}
	m.deps.Notifier.Broadcast(core.Overlay{
		Duration: OverlayDuration,
		Color:    color,
		Position: position.Add(core.Up),
		Shape:    core.ShapeText,
		Text:     text,
	})
	m.deps.Notifier.Broadcast(core.Overlay{
		Duration: OverlayDuration,
		Color:    color,
		Position: position,
		Shape:    core.ShapeSphere,
		Radius:   OverlayRadius,
	})
}

func (m *Monitor) record(write func(core.Sink) error) {
	if m.deps.Sink == nil {
		return
	}
	if err := write(m.deps.Sink); err != nil {
		m.logger.Warn("Failed to record diagnostic", "error", err)
	}
}
