package monitor

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/trackguard/extension/internal/entity"
	"github.com/trackguard/extension/internal/geo"
	"github.com/trackguard/extension/pkg/core"
)

// CheckZoneForCriticalOverlap looks for a vehicle inside zone closer than
// CriticalTolerance to v. The first one found produces an incident report and
// schedules v for destruction on the next tick; the rest of the zone is not
// examined since v is about to leave every future check.
func (m *Monitor) CheckZoneForCriticalOverlap(v core.Vehicle, zone core.TriggerZone) bool {
	if entity.IsGone(v) || zone == nil {
		return false
	}

	for _, content := range zone.Contents() {
		other, ok := content.(core.Vehicle)
		if !ok || other == nil || other.EntityID() == v.EntityID() {
			continue
		}

		overlapping, distance := geo.Overlapping(v.Position(), other.Position(), CriticalTolerance)
		if !overlapping {
			continue
		}

		m.reportIncident(v, other, distance)
		return true
	}
	return false
}

func (m *Monitor) reportIncident(v, other core.Vehicle, distance float64) {
	position := v.Position()
	incident := &core.Incident{
		ID:        uuid.New(),
		VehicleID: v.EntityID(),
		OtherID:   other.EntityID(),
		Time:      m.deps.Now(),
		Distance:  distance,
		Position:  position,
		Lines:     m.buildReport(v, other, distance, position),
	}

	m.logger.Error(incident.Report(),
		"vehicle", incident.VehicleID,
		"other", incident.OtherID,
		"distance", distance,
		"incident", incident.ID.String(),
	)

	// destroying inline would pull the vehicle out from under the caller
	m.deps.Scheduler.NextTick(func() {
		m.Destroy(v)
	})

	m.overlay(core.ColorRed, position, "Workcart emergency destroyed")

	m.incidents.Add(1)
	m.incidentCounter.Add(context.Background(), 1)

	m.record(func(sink core.Sink) error {
		return sink.RecordIncident(incident)
	})
}

// buildReport assembles the incident lines. Lines whose data is missing are
// left out.
func (m *Monitor) buildReport(a, b core.Vehicle, distance float64, position core.Position3D) []string {
	lines := []string{
		fmt.Sprintf("Workcart emergency destroyed due to extreme proximity (%.2fm) at %s.", distance, position),
	}

	ctx, cancel := context.WithTimeout(context.Background(), controllerTimeout)
	defer cancel()

	if m.accessor.IsManagedExternally(ctx, a) {
		lines = append(lines, "Workcart A was controlled by an external controller")
	}
	if m.accessor.IsManagedExternally(ctx, b) {
		lines = append(lines, "Workcart B was controlled by an external controller")
	}

	if driver := entity.Operator(a); driver != nil {
		lines = append(lines, fmt.Sprintf("Workcart A driver: %s (%d)", driver.Name(), driver.ID))
	}
	if driver := entity.Operator(b); driver != nil {
		lines = append(lines, fmt.Sprintf("Workcart B driver: %s (%d)", driver.Name(), driver.ID))
	}

	for _, p := range entity.Passengers(a) {
		lines = append(lines, fmt.Sprintf("Workcart A passenger: %s (%d)", p.Name(), p.ID))
	}
	for _, p := range entity.Passengers(b) {
		lines = append(lines, fmt.Sprintf("Workcart B passenger: %s (%d)", p.Name(), p.ID))
	}

	return lines
}

// Destroy kills v with an unprotected maximal explosion attributed to itself.
func (m *Monitor) Destroy(v core.Vehicle) {
	if entity.IsGone(v) {
		return
	}

	v.Die(core.DamageInfo{
		Initiator:     v,
		Type:          core.DamageExplosion,
		Amount:        math.MaxFloat64,
		Position:      v.Position(),
		UseProtection: false,
	})
	m.logger.Debug("Workcart destroyed", "vehicle", v.EntityID())
}
