// Package world mirrors the host's track vehicles in memory. The host pushes
// state into it and the mirror forwards the core's mutations back out.
package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/trackguard/extension/pkg/core"
)

// ErrUnknownVehicle is returned when an update references a vehicle the
// mirror has never seen.
var ErrUnknownVehicle = errors.New("unknown vehicle")

// Side selects one of a vehicle's collision triggers.
type Side string

const (
	Front Side = "front"
	Rear  Side = "rear"
)

// ParseSide parses "front" or "rear".
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Front, Rear:
		return Side(s), nil
	}
	return "", fmt.Errorf("invalid trigger side %q", s)
}

// Outbox receives mutations applied by the core so they can be sent to the host.
type Outbox interface {
	SetSpeed(vehicleID uint64, speed float64)
	Destroy(vehicleID uint64, info core.DamageInfo)
}

type nopOutbox struct{}

func (nopOutbox) SetSpeed(uint64, float64)        {}
func (nopOutbox) Destroy(uint64, core.DamageInfo) {}

// VehicleState is a host snapshot of one vehicle.
type VehicleState struct {
	ID        uint64          `json:"id" yaml:"id"`
	Position  core.Position3D `json:"position" yaml:"position"`
	Speed     float64         `json:"speed" yaml:"speed"`
	MaxSpeed  float64         `json:"maxSpeed" yaml:"maxSpeed"`
	Destroyed bool            `json:"destroyed" yaml:"destroyed"`
	Driver    *core.Occupant  `json:"driver,omitempty" yaml:"driver,omitempty"`
}

// World is the vehicle mirror.
type World struct {
	mu       sync.RWMutex
	vehicles map[uint64]*Vehicle
	out      Outbox
}

// New creates an empty World. out may be nil.
func New(out Outbox) *World {
	if out == nil {
		out = nopOutbox{}
	}
	return &World{
		vehicles: make(map[uint64]*Vehicle),
		out:      out,
	}
}

// Upsert creates or refreshes a vehicle from a host snapshot.
func (w *World) Upsert(s VehicleState) *Vehicle {
	w.mu.Lock()
	defer w.mu.Unlock()

	v, ok := w.vehicles[s.ID]
	if !ok {
		v = &Vehicle{id: s.ID, world: w}
		v.front = &Zone{world: w, owner: v}
		v.rear = &Zone{world: w, owner: v}
		v.passengers = &PassengerZone{world: w, owner: v}
		w.vehicles[s.ID] = v
	}
	v.position = s.Position
	v.speed = s.Speed
	v.maxSpeed = s.MaxSpeed
	// a snapshot taken before the host applied :DESTROY: must not revive it
	v.destroyed = v.destroyed || s.Destroyed
	v.driver = s.Driver
	return v
}

// Remove forgets a vehicle, as when the host despawns it. Handles already
// held by the core keep reporting the vehicle as gone and its triggers empty.
func (w *World) Remove(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vehicles[id]
	if !ok {
		return
	}
	v.removed = true
	v.front.members = nil
	v.rear.members = nil
	v.passengers.occupants = nil
	delete(w.vehicles, id)
}

// Vehicle returns the vehicle or nil.
func (w *World) Vehicle(id uint64) core.Vehicle {
	v := w.lookup(id)
	if v == nil {
		return nil
	}
	return v
}

// Get returns the concrete vehicle or nil.
func (w *World) Get(id uint64) *Vehicle {
	return w.lookup(id)
}

// IDs returns the known vehicle IDs in ascending order.
func (w *World) IDs() []uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]uint64, 0, len(w.vehicles))
	for id := range w.vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Trigger returns a vehicle's front or rear trigger, or nil.
func (w *World) Trigger(owner uint64, side Side) core.TriggerZone {
	v := w.lookup(owner)
	if v == nil {
		return nil
	}
	return v.zone(side)
}

// SetTriggerContents replaces the entity IDs overlapping a trigger.
func (w *World) SetTriggerContents(owner uint64, side Side, ids []uint64) error {
	v := w.lookup(owner)
	if v == nil {
		return fmt.Errorf("%w: %d", ErrUnknownVehicle, owner)
	}
	z := v.zone(side)

	w.mu.Lock()
	defer w.mu.Unlock()
	z.members = append(z.members[:0], ids...)
	return nil
}

// SetPassengers replaces the occupants standing on a vehicle's platform.
func (w *World) SetPassengers(owner uint64, occupants []core.Occupant) error {
	v := w.lookup(owner)
	if v == nil {
		return fmt.Errorf("%w: %d", ErrUnknownVehicle, owner)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	v.passengers.occupants = v.passengers.occupants[:0]
	for i := range occupants {
		o := occupants[i]
		v.passengers.occupants = append(v.passengers.occupants, &o)
	}
	return nil
}

func (w *World) lookup(id uint64) *Vehicle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.vehicles[id]
}

func (w *World) alive(v *Vehicle) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.vehicles[v.id] == v
}

// Thing is a non-vehicle entity inside a trigger, such as a player or a crate.
type Thing uint64

// EntityID implements core.Entity.
func (t Thing) EntityID() uint64 { return uint64(t) }
