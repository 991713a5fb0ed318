package monitor

import (
	"encoding/json"
	"sort"
)

// Status is a point-in-time summary of the monitor.
type Status struct {
	ActiveSessions    int      `json:"activeSessions"`
	EscalatedVehicles []uint64 `json:"escalatedVehicles"`
	SpeedCorrections  int64    `json:"speedCorrections"`
	Escalations       int64    `json:"escalations"`
	Incidents         int64    `json:"incidents"`
}

// GetStatus returns the current counters and session summary.
func (m *Monitor) GetStatus() Status {
	escalated := m.Escalated()
	sort.Slice(escalated, func(i, j int) bool { return escalated[i] < escalated[j] })

	return Status{
		ActiveSessions:    m.ActiveSessions(),
		EscalatedVehicles: escalated,
		SpeedCorrections:  m.speedCorrections.Load(),
		Escalations:       m.escalations.Load(),
		Incidents:         m.incidents.Load(),
	}
}

// JSON renders the status for the host's :STATUS: call.
func (s Status) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return `{"error":"` + err.Error() + `"}`
	}
	return string(data)
}
