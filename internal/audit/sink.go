package audit

import (
	"errors"

	"github.com/trackguard/extension/pkg/core"
)

// MultiSink fans diagnostics out to several sinks. Nil entries are skipped
// and every sink is called even if an earlier one fails.
type MultiSink []core.Sink

// NewMultiSink builds a MultiSink, dropping nils.
func NewMultiSink(sinks ...core.Sink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m MultiSink) RecordSpeedCorrection(e *core.SpeedCorrection) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordSpeedCorrection(e))
	}
	return errors.Join(errs...)
}

func (m MultiSink) RecordProximityWarning(e *core.ProximityWarning) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordProximityWarning(e))
	}
	return errors.Join(errs...)
}

func (m MultiSink) RecordIncident(e *core.Incident) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordIncident(e))
	}
	return errors.Join(errs...)
}
