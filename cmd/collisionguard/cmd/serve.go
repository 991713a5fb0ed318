package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trackguard/extension/internal/bridge"
	"github.com/trackguard/extension/internal/config"
	"github.com/trackguard/extension/internal/dispatcher"
	"github.com/trackguard/extension/internal/handlers"
	"github.com/trackguard/extension/internal/logging"
	"github.com/trackguard/extension/internal/monitor"
	"github.com/trackguard/extension/internal/scheduler"
	"github.com/trackguard/extension/internal/world"
)

var hostTicks bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host bridge on stdin/stdout",
	Long: `serve reads line-delimited JSON commands from stdin and writes speed,
destroy and overlay commands to stdout. Time advances on a wall-clock
ticker (scheduler.period) unless --host-ticks is set, in which case only
:TICK: commands move the clock.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&hostTicks, "host-ticks", false, "advance time only on :TICK: commands")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := bridgeOutput()
	if err != nil {
		return err
	}
	if out != os.Stdout {
		a.onClose(func(context.Context) error { return out.Close() })
	}
	writer := bridge.NewWriter(out, a.Logger)

	sink, workers, err := a.buildSink()
	if err != nil {
		return err
	}
	workers.Start(ctx)
	defer func() {
		stop()
		workers.Wait()
	}()

	sched := scheduler.New()
	mon, err := monitor.New(monitor.Dependencies{
		Scheduler:  sched,
		Notifier:   a.buildNotifier(writer),
		Sink:       sink,
		Controller: a.buildController(ctx, nil),
		Logger:     a.Logger,
	})
	if err != nil {
		return fmt.Errorf("error creating monitor: %w", err)
	}
	a.watch(mon)

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("error creating dispatcher: %w", err)
	}
	mirror := world.New(writer)
	handlers.NewService(handlers.Dependencies{
		World:            mirror,
		Monitor:          mon,
		Clock:            sched,
		Logger:           a.Logger,
		HostLog:          a.Logs,
		ExtensionName:    ExtensionName,
		ExtensionVersion: Version,
	}).Register(d)

	period := config.GetDuration("scheduler.period")
	if hostTicks {
		period = 0
	}
	a.Logger.Info("Bridge ready", "commands", d.Commands(), "period", period)

	err = bridge.New(bridge.Dependencies{
		In:         os.Stdin,
		Out:        writer,
		Dispatcher: d,
		Runner:     sched,
		Period:     period,
		Logger:     a.Logger,
	}).Run(ctx)

	stop()
	a.Logger.Info("Bridge stopped",
		"status", mon.GetStatus().JSON(),
		"vehicles", len(mirror.IDs()),
		"flushes", workers.Runs(),
		"lastFlush", workers.GetLastWriteDuration(),
	)
	return err
}

// bridgeOutput resolves bridge.output: "stdout" or a file path.
func bridgeOutput() (*os.File, error) {
	target := viper.GetString("bridge.output")
	if target == "" || target == "stdout" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge output: %w", err)
	}
	return f, nil
}
