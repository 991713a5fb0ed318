package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/trackguard/extension/internal/entity"
	"github.com/trackguard/extension/internal/scheduler"
	"github.com/trackguard/extension/pkg/core"
)

// Session is a bounded series of critical-overlap re-checks against one
// vehicle. Sessions for the same vehicle are not merged: every escalation
// runs its own.
type Session struct {
	ID        uuid.UUID
	VehicleID uint64
	Interval  time.Duration
	StartedAt time.Time

	remaining int
	timer     *scheduler.Timer
}

// Remaining returns the number of re-checks left.
func (s *Session) Remaining() int {
	return s.remaining
}

func (m *Monitor) startSession(v core.Vehicle) *Session {
	s := &Session{
		ID:        uuid.New(),
		VehicleID: v.EntityID(),
		Interval:  SessionInterval,
		StartedAt: m.deps.Now(),
		remaining: SessionBudget,
	}

	m.mu.Lock()
	set, ok := m.sessions[s.VehicleID]
	if !ok {
		set = make(map[*Session]struct{})
		m.sessions[s.VehicleID] = set
	}
	set[s] = struct{}{}
	m.mu.Unlock()

	s.timer = m.deps.Scheduler.Repeat(SessionInterval, SessionBudget, func() {
		m.tickSession(s, v)
	})
	return s
}

func (m *Monitor) tickSession(s *Session, v core.Vehicle) {
	if entity.IsGone(v) {
		m.endSession(s, "vehicle gone")
		return
	}

	m.CheckTriggers(v)

	m.mu.Lock()
	s.remaining--
	done := s.remaining <= 0
	m.mu.Unlock()

	if done {
		m.endSession(s, "expired")
	}
}

func (m *Monitor) endSession(s *Session, reason string) {
	if s.timer != nil {
		s.timer.Stop()
	}

	m.mu.Lock()
	if set, ok := m.sessions[s.VehicleID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(m.sessions, s.VehicleID)
		}
	}
	m.mu.Unlock()

	m.logger.Debug("Monitoring session ended", "session", s.ID.String(), "vehicle", s.VehicleID, "reason", reason)
}

// State returns the escalation state of a vehicle.
func (m *Monitor) State(vehicleID uint64) State {
	if m.SessionCount(vehicleID) > 0 {
		return StateEscalated
	}
	return StateIdle
}

// SessionCount returns how many sessions are running against a vehicle.
func (m *Monitor) SessionCount(vehicleID uint64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[vehicleID])
}

// ActiveSessions returns the number of running sessions across all vehicles.
func (m *Monitor) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, set := range m.sessions {
		n += len(set)
	}
	return n
}

// Escalated returns the IDs of vehicles with at least one running session.
func (m *Monitor) Escalated() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
