// Package scenario loads and replays scripted workcart situations. A scenario
// lists vehicles and timed host events; replaying it drives the same command
// handlers the live bridge uses, against a virtual clock.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trackguard/extension/internal/dispatcher"
	"github.com/trackguard/extension/internal/handlers"
	"github.com/trackguard/extension/internal/world"
	"github.com/trackguard/extension/pkg/core"
)

const (
	DefaultStep     = 100 * time.Millisecond
	DefaultDuration = 15 * time.Second
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Scenario is a scripted replay.
type Scenario struct {
	Name     string        `yaml:"name"`
	Step     time.Duration `yaml:"step"`
	Duration time.Duration `yaml:"duration"`
	// Controlled lists vehicles reported as managed by an external controller.
	Controlled []uint64  `yaml:"controlled"`
	Vehicles   []Vehicle `yaml:"vehicles"`
	Events     []Event   `yaml:"events"`
}

// Vehicle is the initial state of one workcart.
type Vehicle struct {
	ID         uint64          `yaml:"id"`
	Position   core.Position3D `yaml:"position"`
	Speed      float64         `yaml:"speed"`
	MaxSpeed   float64         `yaml:"maxSpeed"`
	Destroyed  bool            `yaml:"destroyed"`
	Driver     *core.Occupant  `yaml:"driver,omitempty"`
	Passengers []core.Occupant `yaml:"passengers,omitempty"`
}

// Trigger names one side of a vehicle's collision triggers.
type Trigger struct {
	Owner uint64     `yaml:"owner"`
	Side  world.Side `yaml:"side"`
}

// Enter is a vehicle starting to overlap a trigger.
type Enter struct {
	Trigger `yaml:",inline"`
	Vehicle uint64 `yaml:"vehicle"`
}

// Contents replaces what a trigger overlaps.
type Contents struct {
	Trigger  `yaml:",inline"`
	Entities []uint64 `yaml:"entities"`
}

// Event happens at a scenario time. Exactly one action field is set.
type Event struct {
	At       time.Duration `yaml:"at"`
	Enter    *Enter        `yaml:"enter,omitempty"`
	Contents *Contents     `yaml:"contents,omitempty"`
	Update   *Vehicle      `yaml:"update,omitempty"`
	Remove   *uint64       `yaml:"remove,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error decoding scenario: %w", err)
	}
	if s.Step <= 0 {
		s.Step = DefaultStep
	}
	if s.Duration <= 0 {
		s.Duration = DefaultDuration
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].At < s.Events[j].At })
	return &s, nil
}

// Validate checks vehicle IDs and event shape.
func (s *Scenario) Validate() error {
	seen := make(map[uint64]bool, len(s.Vehicles))
	for _, v := range s.Vehicles {
		if seen[v.ID] {
			return fmt.Errorf("%w: duplicate vehicle %d", ErrInvalid, v.ID)
		}
		seen[v.ID] = true
	}
	for i, e := range s.Events {
		if e.At < 0 {
			return fmt.Errorf("%w: event %d has negative time", ErrInvalid, i)
		}
		if n := e.actions(); n != 1 {
			return fmt.Errorf("%w: event %d has %d actions", ErrInvalid, i, n)
		}
		var side world.Side
		switch {
		case e.Enter != nil:
			side = e.Enter.Side
		case e.Contents != nil:
			side = e.Contents.Side
		}
		if side != "" {
			if _, err := world.ParseSide(string(side)); err != nil {
				return fmt.Errorf("%w: event %d: %w", ErrInvalid, i, err)
			}
		}
	}
	return nil
}

func (e Event) actions() int {
	n := 0
	if e.Enter != nil {
		n++
	}
	if e.Contents != nil {
		n++
	}
	if e.Update != nil {
		n++
	}
	if e.Remove != nil {
		n++
	}
	return n
}

// commands renders the event as host commands.
func (e Event) commands() ([]dispatcher.Event, error) {
	switch {
	case e.Enter != nil:
		return []dispatcher.Event{command(handlers.CmdEnter,
			id(e.Enter.Owner), string(e.Enter.Side), id(e.Enter.Vehicle))}, nil
	case e.Contents != nil:
		return []dispatcher.Event{command(handlers.CmdZone,
			id(e.Contents.Owner), string(e.Contents.Side), idList(e.Contents.Entities))}, nil
	case e.Update != nil:
		return e.Update.commands()
	case e.Remove != nil:
		return []dispatcher.Event{command(handlers.CmdRemove, id(*e.Remove))}, nil
	}
	return nil, nil
}

func (v Vehicle) commands() ([]dispatcher.Event, error) {
	driver := ""
	if v.Driver != nil {
		data, err := toJSON(v.Driver)
		if err != nil {
			return nil, err
		}
		driver = data
	}
	out := []dispatcher.Event{command(handlers.CmdUpsert,
		id(v.ID),
		fmt.Sprintf("%g,%g,%g", v.Position.X, v.Position.Y, v.Position.Z),
		strconv.FormatFloat(v.Speed, 'g', -1, 64),
		strconv.FormatFloat(v.MaxSpeed, 'g', -1, 64),
		strconv.FormatBool(v.Destroyed),
		driver,
	)}
	if v.Passengers != nil {
		data, err := toJSON(v.Passengers)
		if err != nil {
			return nil, err
		}
		out = append(out, command(handlers.CmdPassengers, id(v.ID), data))
	}
	return out, nil
}

func command(name string, args ...string) dispatcher.Event {
	return dispatcher.Event{Command: name, Args: args}
}

func id(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func idList(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = id(v)
	}
	return strings.Join(parts, ",")
}
