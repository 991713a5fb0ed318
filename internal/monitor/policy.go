package monitor

import "time"

// Fixed policy. The proximity band is wider than the critical band so a
// warning normally precedes any destruction.
const (
	SpeedLimitMultiplier = 1.5
	CriticalTolerance    = 4.0
	ProximityTolerance   = 6.0

	InitialCheckDelay = 100 * time.Millisecond
	SessionInterval   = time.Second
	SessionBudget     = 10

	OverlayDuration = 60 * time.Second
	OverlayRadius   = 1.0

	controllerTimeout = 250 * time.Millisecond
)
