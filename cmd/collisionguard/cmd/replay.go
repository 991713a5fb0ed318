package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trackguard/extension/internal/scenario"
)

var (
	replayRecord bool
	replayDraw   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>",
	Short: "Replay a scripted scenario against the monitor",
	Long: `replay runs a YAML scenario on a virtual clock and prints what the
monitor did. With --record the diagnostics go to the configured audit store
and InfluxDB as they would in serve.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayRecord, "record", false, "write diagnostics to the configured sinks")
	replayCmd.Flags().BoolVar(&replayDraw, "overlays", false, "send overlays to the configured notifiers")
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	deps := scenario.Dependencies{
		Logger:     a.Logger,
		Controller: a.buildController(cmd.Context(), s.Controlled),
	}
	if replayDraw {
		deps.Notifier = a.buildNotifier(nil)
	}
	if replayRecord {
		sink, workers, err := a.buildSink()
		if err != nil {
			return err
		}
		deps.Sink = sink
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
			defer cancel()
			if err := workers.RunOnce(ctx); err != nil {
				a.Logger.Error("Failed to flush diagnostics", "error", err)
			}
		}()
	}

	res, err := scenario.Replay(cmd.Context(), s, deps)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func printResult(w io.Writer, res *scenario.Result) {
	title := color.New(color.FgCyan, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow)
	ok := color.New(color.FgGreen)

	_, _ = title.Fprintf(w, "%s (%s)\n", res.Name, res.Elapsed)

	if len(res.Speeds) == 0 {
		_, _ = ok.Fprintln(w, "  no speed corrections")
	}
	ids := make([]uint64, 0, len(res.Speeds))
	for id := range res.Speeds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		_, _ = warn.Fprintf(w, "  vehicle %d slowed to %v\n", id, res.Speeds[id])
	}

	_, _ = fmt.Fprintf(w, "  escalations: %d, active sessions at end: %d\n",
		res.Status.Escalations, res.Status.ActiveSessions)

	if len(res.Destroyed) == 0 {
		_, _ = ok.Fprintln(w, "  no vehicles destroyed")
		return
	}
	for _, id := range res.Destroyed {
		_, _ = bad.Fprintf(w, "  vehicle %d destroyed\n", id)
	}
}

