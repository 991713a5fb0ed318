// pkg/core/events.go
package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpeedCorrection records a runaway speed clamped back to the rated maximum.
type SpeedCorrection struct {
	VehicleID     uint64
	Time          time.Time
	PreviousSpeed float64
	Speed         float64
	Position      Position3D
}

// ProximityWarning records two vehicles found unusually close, which opens a
// monitoring session.
type ProximityWarning struct {
	SessionID uuid.UUID
	VehicleID uint64
	Time      time.Time
	Distance  float64
	Position  Position3D
	Duration  time.Duration
}

// Incident records a critical overlap that led to emergency destruction.
type Incident struct {
	ID        uuid.UUID
	VehicleID uint64
	OtherID   uint64
	Time      time.Time
	Distance  float64
	Position  Position3D
	Lines     []string
}

// Report joins the incident lines the way they are logged.
func (i *Incident) Report() string {
	return strings.Join(i.Lines, "\n")
}
