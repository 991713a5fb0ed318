// Package entity holds read-only queries against host vehicles.
package entity

import (
	"context"
	"log/slog"

	"github.com/trackguard/extension/pkg/core"
)

// IsGone reports whether the vehicle vanished or was destroyed.
func IsGone(v core.Vehicle) bool {
	return v == nil || v.IsDestroyed()
}

// Operator returns the vehicle's driver when it is a persistent player.
func Operator(v core.Vehicle) *core.Occupant {
	if IsGone(v) {
		return nil
	}
	o := v.Mounted()
	if !o.IsPlayer() {
		return nil
	}
	return o
}

// Passengers returns the players riding on the vehicle's platform, or nil when
// the passenger zone reports nothing.
func Passengers(v core.Vehicle) []core.Occupant {
	if IsGone(v) {
		return nil
	}
	zone := v.PassengerZone()
	if zone == nil {
		return nil
	}
	contents := zone.Contents()
	if len(contents) == 0 {
		return nil
	}

	players := make([]core.Occupant, 0, len(contents))
	for _, e := range contents {
		o, ok := e.(*core.Occupant)
		if !ok || !o.IsPlayer() {
			continue
		}
		players = append(players, *o)
	}
	return players
}

// Accessor answers the queries that need an injected collaborator.
type Accessor struct {
	controller core.ExternalController
	logger     *slog.Logger
}

// NewAccessor creates an Accessor. controller may be nil.
func NewAccessor(controller core.ExternalController, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accessor{controller: controller, logger: logger}
}

// IsManagedExternally asks the external controller about the vehicle. Any
// failure counts as "not managed".
func (a *Accessor) IsManagedExternally(ctx context.Context, v core.Vehicle) bool {
	if a.controller == nil || v == nil {
		return false
	}
	managed, err := a.controller.ManagesVehicle(ctx, v.EntityID())
	if err != nil {
		a.logger.Debug("External controller query failed", "vehicle", v.EntityID(), "error", err)
		return false
	}
	return managed
}
