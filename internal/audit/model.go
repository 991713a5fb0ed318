package audit

import (
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// Models lists every table the store migrates.
var Models = []interface{}{
	&Incident{},
	&SpeedCorrection{},
	&ProximityWarning{},
}

// Incident is one emergency destruction.
type Incident struct {
	ID        uuid.UUID                   `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time                   `json:"createdAt"`
	Time      time.Time                   `json:"time" gorm:"index:idx_incident_time"`
	VehicleID uint64                      `json:"vehicleId" gorm:"index:idx_incident_vehicle"`
	OtherID   uint64                      `json:"otherId"`
	Distance  float64                     `json:"distance"`
	Position  geom.Point                  `json:"position"`           // world position, XYZ
	Mercator  *geom.Point                 `json:"mercator,omitempty"` // EPSG:3857, only with a georeference
	Lines     datatypes.JSONSlice[string] `json:"lines"`
}

// SpeedCorrection is one runaway speed clamp.
type SpeedCorrection struct {
	ID            uint        `json:"id" gorm:"primarykey;autoIncrement"`
	Time          time.Time   `json:"time" gorm:"index:idx_correction_time"`
	VehicleID     uint64      `json:"vehicleId" gorm:"index:idx_correction_vehicle"`
	PreviousSpeed float64     `json:"previousSpeed"`
	Speed         float64     `json:"speed"`
	Position      geom.Point  `json:"position"`
	Mercator      *geom.Point `json:"mercator,omitempty"`
}

// ProximityWarning is one escalation into a monitoring session.
type ProximityWarning struct {
	ID         uint        `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID  uuid.UUID   `json:"sessionId" gorm:"index:idx_warning_session"`
	Time       time.Time   `json:"time" gorm:"index:idx_warning_time"`
	VehicleID  uint64      `json:"vehicleId" gorm:"index:idx_warning_vehicle"`
	Distance   float64     `json:"distance"`
	DurationMs int64       `json:"durationMs"`
	Position   geom.Point  `json:"position"`
	Mercator   *geom.Point `json:"mercator,omitempty"`
}
