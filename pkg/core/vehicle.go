// pkg/core/vehicle.go
package core

import "context"

// Entity is anything that can sit inside a trigger zone.
type Entity interface {
	EntityID() uint64
}

// Vehicle is a track-bound vehicle owned by the host simulation.
// The core only reads it, apart from SetTrackSpeed and Die.
type Vehicle interface {
	Entity
	Position() Position3D
	TrackSpeed() float64
	SetTrackSpeed(speed float64)
	MaxSpeed() float64
	IsDestroyed() bool
	Die(info DamageInfo)
	// Mounted returns the driver, or nil.
	Mounted() *Occupant
	PassengerZone() TriggerZone
	FrontTrigger() TriggerZone
	RearTrigger() TriggerZone
}

// TriggerZone reports which entities currently overlap its volume.
// Contents is a live snapshot and must be fetched again at every check.
type TriggerZone interface {
	// Owner returns the vehicle the zone is attached to, or nil.
	Owner() Vehicle
	Contents() []Entity
	Contains(e Entity) bool
}

// ExternalController is an optional registry that marks vehicles driven by
// another system, such as a scripted cargo train event.
type ExternalController interface {
	ManagesVehicle(ctx context.Context, vehicleID uint64) (bool, error)
}

// Notifier presents overlays to privileged observers. The implementation
// decides who receives them.
type Notifier interface {
	Broadcast(o Overlay)
}

// Sink receives the diagnostic records produced by the monitor.
type Sink interface {
	RecordSpeedCorrection(e *SpeedCorrection) error
	RecordProximityWarning(e *ProximityWarning) error
	RecordIncident(e *Incident) error
}
