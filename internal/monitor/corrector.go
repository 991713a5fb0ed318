package monitor

import (
	"context"
	"fmt"

	"github.com/trackguard/extension/internal/entity"
	"github.com/trackguard/extension/pkg/core"
)

// CheckSpeed clamps a vehicle whose track speed exceeds SpeedLimitMultiplier
// times its rated maximum back to that maximum. Physics occasionally launches
// a workcart right after a collision.
func (m *Monitor) CheckSpeed(v core.Vehicle) {
	if entity.IsGone(v) {
		return
	}

	position := v.Position()
	currentSpeed := v.TrackSpeed()
	maxSpeed := v.MaxSpeed()

	if currentSpeed <= maxSpeed*SpeedLimitMultiplier {
		return
	}

	v.SetTrackSpeed(maxSpeed)
	corrected := v.TrackSpeed()

	m.logger.Warn(
		fmt.Sprintf("Workcart emergency slowed from %.2f to %v because it was moving too fast after collision. Location: %s", currentSpeed, corrected, position),
		"vehicle", v.EntityID(),
		"from", currentSpeed,
		"to", corrected,
		"position", position.String(),
	)
	m.overlay(core.ColorOrange, position, fmt.Sprintf("Workcart emergency slowed:\n%.2f -> %v", currentSpeed, corrected))

	m.speedCorrections.Add(1)
	m.correctionCounter.Add(context.Background(), 1)

	m.record(func(sink core.Sink) error {
		return sink.RecordSpeedCorrection(&core.SpeedCorrection{
			VehicleID:     v.EntityID(),
			Time:          m.deps.Now(),
			PreviousSpeed: currentSpeed,
			Speed:         corrected,
			Position:      position,
		})
	})
}
