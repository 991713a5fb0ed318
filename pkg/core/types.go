// pkg/core/types.go
package core

import (
	"fmt"
	"time"
)

// Position3D is a world-space position in metres.
type Position3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"` // elevation
}

// Add returns p offset by o.
func (p Position3D) Add(o Position3D) Position3D {
	return Position3D{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// String formats the position the way the host prints vectors.
func (p Position3D) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// Up is one metre above the origin, used to lift overlay text off a vehicle.
var Up = Position3D{Z: 1}

// Color is an RGB colour with components in [0,1].
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
}

// Overlay colours
var (
	ColorOrange = Color{R: 1, G: 0.5, B: 0}
	ColorYellow = Color{R: 1, G: 0.92, B: 0.016}
	ColorRed    = Color{R: 1}
)

// Shape selects what an overlay draws.
type Shape string

const (
	ShapeText   Shape = "text"
	ShapeSphere Shape = "sphere"
)

// Overlay is a timed debug drawing shown to privileged observers.
type Overlay struct {
	Duration time.Duration `json:"duration"`
	Color    Color         `json:"color"`
	Position Position3D    `json:"position"`
	Shape    Shape         `json:"shape"`
	Text     string        `json:"text,omitempty"`
	Radius   float64       `json:"radius,omitempty"`
}

// Severity of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// DamageType is the cause applied when a vehicle is killed.
type DamageType string

const DamageExplosion DamageType = "explosion"

// DamageInfo describes a lethal hit applied through Vehicle.Die.
type DamageInfo struct {
	Initiator     Entity
	Type          DamageType
	Amount        float64
	Position      Position3D
	UseProtection bool
}
