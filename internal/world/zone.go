package world

import "github.com/trackguard/extension/pkg/core"

// Zone is a collision trigger attached to a vehicle. Its contents are
// resolved against the mirror on every call.
type Zone struct {
	world   *World
	owner   *Vehicle
	members []uint64
}

// Owner returns the owning vehicle, or nil once it has been removed.
func (z *Zone) Owner() core.Vehicle {
	if z.owner == nil || !z.world.alive(z.owner) {
		return nil
	}
	return z.owner
}

// Contents returns the entities overlapping the trigger. Known vehicles are
// returned as vehicles; any other ID is a Thing. A removed owner's trigger is
// empty.
func (z *Zone) Contents() []core.Entity {
	z.world.mu.RLock()
	defer z.world.mu.RUnlock()

	if len(z.members) == 0 || z.world.vehicles[z.owner.id] != z.owner {
		return nil
	}
	out := make([]core.Entity, 0, len(z.members))
	for _, id := range z.members {
		if v, ok := z.world.vehicles[id]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, Thing(id))
	}
	return out
}

// Contains reports whether e is currently inside the trigger.
func (z *Zone) Contains(e core.Entity) bool {
	if e == nil {
		return false
	}
	z.world.mu.RLock()
	defer z.world.mu.RUnlock()
	for _, id := range z.members {
		if id == e.EntityID() {
			return true
		}
	}
	return false
}

// PassengerZone is the platform trigger holding a vehicle's passengers.
type PassengerZone struct {
	world     *World
	owner     *Vehicle
	occupants []*core.Occupant
}

func (p *PassengerZone) Owner() core.Vehicle {
	if p.owner == nil || !p.world.alive(p.owner) {
		return nil
	}
	return p.owner
}

func (p *PassengerZone) Contents() []core.Entity {
	p.world.mu.RLock()
	defer p.world.mu.RUnlock()

	if len(p.occupants) == 0 {
		return nil
	}
	out := make([]core.Entity, 0, len(p.occupants))
	for _, o := range p.occupants {
		out = append(out, o)
	}
	return out
}

func (p *PassengerZone) Contains(e core.Entity) bool {
	if e == nil {
		return false
	}
	p.world.mu.RLock()
	defer p.world.mu.RUnlock()
	for _, o := range p.occupants {
		if o.ID == e.EntityID() {
			return true
		}
	}
	return false
}
