package world

import "github.com/trackguard/extension/pkg/core"

// Vehicle is the mirrored state of one host vehicle. It implements core.Vehicle.
type Vehicle struct {
	id         uint64
	world      *World
	position   core.Position3D
	speed      float64
	maxSpeed   float64
	destroyed  bool
	removed    bool
	driver     *core.Occupant
	front      *Zone
	rear       *Zone
	passengers *PassengerZone

	lastDamage *core.DamageInfo
}

func (v *Vehicle) EntityID() uint64 { return v.id }

func (v *Vehicle) Position() core.Position3D {
	v.world.mu.RLock()
	defer v.world.mu.RUnlock()
	return v.position
}

func (v *Vehicle) TrackSpeed() float64 {
	v.world.mu.RLock()
	defer v.world.mu.RUnlock()
	return v.speed
}

// SetTrackSpeed updates the mirror and forwards the change to the host.
// Removed vehicles are left alone.
func (v *Vehicle) SetTrackSpeed(speed float64) {
	v.world.mu.Lock()
	if v.removed {
		v.world.mu.Unlock()
		return
	}
	v.speed = speed
	v.world.mu.Unlock()

	v.world.out.SetSpeed(v.id, speed)
}

func (v *Vehicle) MaxSpeed() float64 {
	v.world.mu.RLock()
	defer v.world.mu.RUnlock()
	return v.maxSpeed
}

// IsDestroyed also holds once the host removed the vehicle.
func (v *Vehicle) IsDestroyed() bool {
	v.world.mu.RLock()
	defer v.world.mu.RUnlock()
	return v.destroyed || v.removed
}

// Die marks the vehicle destroyed and asks the host to kill it.
func (v *Vehicle) Die(info core.DamageInfo) {
	v.world.mu.Lock()
	if v.destroyed || v.removed {
		v.world.mu.Unlock()
		return
	}
	v.destroyed = true
	v.lastDamage = &info
	v.world.mu.Unlock()

	v.world.out.Destroy(v.id, info)
}

// LastDamage returns the hit that destroyed the vehicle, if any.
func (v *Vehicle) LastDamage() *core.DamageInfo {
	v.world.mu.RLock()
	defer v.world.mu.RUnlock()
	return v.lastDamage
}

func (v *Vehicle) Mounted() *core.Occupant {
	v.world.mu.RLock()
	defer v.world.mu.RUnlock()
	return v.driver
}

func (v *Vehicle) PassengerZone() core.TriggerZone { return v.passengers }
func (v *Vehicle) FrontTrigger() core.TriggerZone  { return v.front }
func (v *Vehicle) RearTrigger() core.TriggerZone   { return v.rear }

func (v *Vehicle) zone(side Side) *Zone {
	if side == Rear {
		return v.rear
	}
	return v.front
}
