package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/trackguard/extension/internal/dispatcher"
	"github.com/trackguard/extension/internal/geo"
	"github.com/trackguard/extension/internal/monitor"
	"github.com/trackguard/extension/internal/util"
	"github.com/trackguard/extension/internal/world"
	"github.com/trackguard/extension/pkg/core"
)

// Host commands understood by the extension.
const (
	CmdVersion    = ":VERSION:"
	CmdUpsert     = ":VEHICLE:UPSERT:"
	CmdPassengers = ":VEHICLE:PASSENGERS:"
	CmdRemove     = ":VEHICLE:REMOVE:"
	CmdZone       = ":ZONE:CONTENTS:"
	CmdEnter      = ":TRIGGER:ENTER:"
	CmdTick       = ":TICK:"
	CmdStatus     = ":STATUS:"
	CmdLog        = ":LOG:"
)

// Clock advances the deferred-callback scheduler.
type Clock interface {
	Tick(dt time.Duration)
}

// HostLog records log lines the host forwards with :LOG:.
type HostLog interface {
	WriteLog(functionName, data, level string)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	World            *world.World
	Monitor          *monitor.Monitor
	Clock            Clock
	Logger           *slog.Logger
	HostLog          HostLog // optional
	ExtensionName    string
	ExtensionVersion string
}

// Service translates host commands into world updates and monitor calls.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger.With("component", "handlers")}
}

// Register binds every host command to d. All handlers run synchronously so
// the world mirror and the monitor only ever see one event at a time.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdVersion, s.Version)
	d.Register(CmdUpsert, s.UpsertVehicle)
	d.Register(CmdPassengers, s.SetPassengers, dispatcher.Logged())
	d.Register(CmdRemove, s.RemoveVehicle, dispatcher.Logged())
	d.Register(CmdZone, s.SetZoneContents)
	d.Register(CmdEnter, s.TriggerEnter, dispatcher.Logged())
	d.Register(CmdTick, s.Tick)
	d.Register(CmdStatus, s.Status)
	if s.deps.HostLog != nil {
		d.Register(CmdLog, s.Log)
	}
}

// Version returns the extension name and version.
func (s *Service) Version(dispatcher.Event) (any, error) {
	return []string{s.deps.ExtensionName, s.deps.ExtensionVersion}, nil
}

// UpsertVehicle handles :VEHICLE:UPSERT: id, "x,y,z", speed, maxSpeed,
// destroyed[, operatorJSON].
func (s *Service) UpsertVehicle(e dispatcher.Event) (any, error) {
	if err := e.Need(5); err != nil {
		return nil, err
	}
	args := util.CleanArgs(append([]string(nil), e.Args...))

	id, err := util.ParseID(args[0])
	if err != nil {
		return nil, badArgs(e, err)
	}
	pos, err := geo.Position3DFromString(args[1])
	if err != nil {
		return nil, badArgs(e, err)
	}
	speed, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return nil, badArgs(e, err)
	}
	maxSpeed, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return nil, badArgs(e, err)
	}
	destroyed, err := util.ParseBool(args[4])
	if err != nil {
		return nil, badArgs(e, err)
	}
	driver, err := parseOperator(e.Arg(5))
	if err != nil {
		return nil, badArgs(e, err)
	}

	s.deps.World.Upsert(world.VehicleState{
		ID:        id,
		Position:  pos,
		Speed:     speed,
		MaxSpeed:  maxSpeed,
		Destroyed: destroyed,
		Driver:    driver,
	})
	return nil, nil
}

// SetPassengers handles :VEHICLE:PASSENGERS: id, occupantsJSON.
func (s *Service) SetPassengers(e dispatcher.Event) (any, error) {
	if err := e.Need(2); err != nil {
		return nil, err
	}
	id, err := util.ParseID(util.CleanArg(e.Args[0]))
	if err != nil {
		return nil, badArgs(e, err)
	}

	var occupants []core.Occupant
	if raw := util.CleanArg(e.Args[1]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &occupants); err != nil {
			return nil, badArgs(e, fmt.Errorf("error unmarshalling occupants: %w", err))
		}
	}
	return nil, s.deps.World.SetPassengers(id, occupants)
}

// RemoveVehicle handles :VEHICLE:REMOVE: id.
func (s *Service) RemoveVehicle(e dispatcher.Event) (any, error) {
	if err := e.Need(1); err != nil {
		return nil, err
	}
	id, err := util.ParseID(util.CleanArg(e.Args[0]))
	if err != nil {
		return nil, badArgs(e, err)
	}
	s.deps.World.Remove(id)
	return nil, nil
}

// SetZoneContents handles :ZONE:CONTENTS: ownerId, side, ids.
func (s *Service) SetZoneContents(e dispatcher.Event) (any, error) {
	if err := e.Need(2); err != nil {
		return nil, err
	}
	owner, side, err := ownerAndSide(e)
	if err != nil {
		return nil, err
	}
	ids, err := util.ParseIDList(util.CleanArg(e.Arg(2)))
	if err != nil {
		return nil, badArgs(e, err)
	}
	return nil, s.deps.World.SetTriggerContents(owner, side, ids)
}

// TriggerEnter handles :TRIGGER:ENTER: ownerId, side, enteringId. Entities
// that are not known vehicles are ignored, as are triggers of unknown owners.
func (s *Service) TriggerEnter(e dispatcher.Event) (any, error) {
	if err := e.Need(3); err != nil {
		return nil, err
	}
	owner, side, err := ownerAndSide(e)
	if err != nil {
		return nil, err
	}
	enteringID, err := util.ParseID(util.CleanArg(e.Args[2]))
	if err != nil {
		return nil, badArgs(e, err)
	}

	zone := s.deps.World.Trigger(owner, side)
	if zone == nil {
		s.logger.Debug("Trigger owner not mirrored", "owner", owner)
		return nil, nil
	}
	entering := s.deps.World.Vehicle(enteringID)
	if entering == nil {
		return nil, nil
	}
	s.deps.Monitor.OnTriggerEntry(zone, entering)
	return nil, nil
}

// Tick handles :TICK: dt, where dt is the elapsed host time in seconds.
func (s *Service) Tick(e dispatcher.Event) (any, error) {
	if err := e.Need(1); err != nil {
		return nil, err
	}
	secs, err := strconv.ParseFloat(util.CleanArg(e.Args[0]), 64)
	if err != nil {
		return nil, badArgs(e, err)
	}
	if secs < 0 {
		return nil, badArgs(e, fmt.Errorf("negative dt %v", secs))
	}
	s.deps.Clock.Tick(time.Duration(secs * float64(time.Second)))
	return nil, nil
}

// Status handles :STATUS: and returns the monitor summary as JSON.
func (s *Service) Status(dispatcher.Event) (any, error) {
	return s.deps.Monitor.GetStatus().JSON(), nil
}

// Log handles :LOG: level, function, message.
func (s *Service) Log(e dispatcher.Event) (any, error) {
	if err := e.Need(3); err != nil {
		return nil, err
	}
	args := util.CleanArgs(append([]string(nil), e.Args...))
	s.deps.HostLog.WriteLog(args[1], args[2], args[0])
	return nil, nil
}

func ownerAndSide(e dispatcher.Event) (uint64, world.Side, error) {
	owner, err := util.ParseID(util.CleanArg(e.Args[0]))
	if err != nil {
		return 0, "", badArgs(e, err)
	}
	side, err := world.ParseSide(util.CleanArg(e.Args[1]))
	if err != nil {
		return 0, "", badArgs(e, err)
	}
	return owner, side, nil
}

func parseOperator(raw string) (*core.Occupant, error) {
	raw = util.CleanArg(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var o core.Occupant
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("error unmarshalling operator: %w", err)
	}
	return &o, nil
}

func badArgs(e dispatcher.Event, err error) error {
	return fmt.Errorf("%w: %s: %w", dispatcher.ErrBadArgs, e.Command, err)
}
