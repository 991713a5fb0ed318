package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/trackguard/extension/internal/dispatcher"
	"github.com/trackguard/extension/internal/handlers"
	"github.com/trackguard/extension/internal/monitor"
	"github.com/trackguard/extension/internal/registry"
	"github.com/trackguard/extension/internal/scheduler"
	"github.com/trackguard/extension/internal/world"
	"github.com/trackguard/extension/pkg/core"
)

// Dependencies holds the collaborators a replay reports to.
type Dependencies struct {
	Logger   *slog.Logger
	Sink     core.Sink     // optional
	Notifier core.Notifier // optional
	// Controller overrides the scenario's controlled list.
	Controller core.ExternalController
	Now        func() time.Time
}

// Result summarizes a replay.
type Result struct {
	Name      string
	Elapsed   time.Duration
	Status    monitor.Status
	Destroyed []uint64
	// Speeds holds every speed the monitor forced, per vehicle.
	Speeds map[uint64][]float64
}

type recorder struct {
	destroyed []uint64
	speeds    map[uint64][]float64
}

func (r *recorder) SetSpeed(id uint64, speed float64) {
	r.speeds[id] = append(r.speeds[id], speed)
}

func (r *recorder) Destroy(id uint64, _ core.DamageInfo) {
	r.destroyed = append(r.destroyed, id)
}

// Replay runs s to completion on a fresh world and virtual clock.
func Replay(ctx context.Context, s *Scenario, deps Dependencies) (*Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	controller := deps.Controller
	if controller == nil {
		controller = registry.NewStatic(s.Controlled...)
	}

	sched := scheduler.New()
	rec := &recorder{speeds: make(map[uint64][]float64)}
	w := world.New(rec)

	now := deps.Now
	if now == nil {
		start := time.Now()
		now = func() time.Time { return start.Add(sched.Now()) }
	}

	mon, err := monitor.New(monitor.Dependencies{
		Scheduler:  sched,
		Notifier:   deps.Notifier,
		Sink:       deps.Sink,
		Controller: controller,
		Logger:     logger,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating monitor: %w", err)
	}

	d, err := dispatcher.New(logger)
	if err != nil {
		return nil, fmt.Errorf("error creating dispatcher: %w", err)
	}
	handlers.NewService(handlers.Dependencies{
		World:   w,
		Monitor: mon,
		Clock:   sched,
		Logger:  logger,
	}).Register(d)

	for _, v := range s.Vehicles {
		cmds, err := v.commands()
		if err != nil {
			return nil, err
		}
		if err := dispatchAll(d, cmds); err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", v.ID, err)
		}
	}

	next := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for next < len(s.Events) && s.Events[next].At <= sched.Now() {
			cmds, err := s.Events[next].commands()
			if err != nil {
				return nil, err
			}
			if err := dispatchAll(d, cmds); err != nil {
				return nil, fmt.Errorf("event %d at %s: %w", next, s.Events[next].At, err)
			}
			next++
		}
		if sched.Now() >= s.Duration {
			break
		}
		sched.Tick(s.Step)
	}

	logger.Info("Scenario finished", "name", s.Name, "elapsed", sched.Now(), "pending", sched.Pending())

	destroyed := append([]uint64(nil), rec.destroyed...)
	sort.Slice(destroyed, func(i, j int) bool { return destroyed[i] < destroyed[j] })
	return &Result{
		Name:      s.Name,
		Elapsed:   sched.Now(),
		Status:    mon.GetStatus(),
		Destroyed: destroyed,
		Speeds:    rec.speeds,
	}, nil
}

func dispatchAll(d *dispatcher.Dispatcher, cmds []dispatcher.Event) error {
	for _, c := range cmds {
		if _, err := d.Dispatch(c); err != nil {
			return err
		}
	}
	return nil
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error encoding host argument: %w", err)
	}
	return string(data), nil
}
