package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trackguard/extension/internal/audit"
)

var (
	incidentsLimit int
	incidentsJSON  bool
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List recorded emergency destructions",
	RunE:  runIncidents,
}

func init() {
	incidentsCmd.Flags().IntVar(&incidentsLimit, "limit", 20, "maximum number of incidents, 0 for all")
	incidentsCmd.Flags().BoolVar(&incidentsJSON, "json", false, "print JSON instead of text")
}

func runIncidents(cmd *cobra.Command, _ []string) error {
	a, err := newApp(io.Discard)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store == nil {
		return audit.ErrDisabled
	}

	incidents, err := store.ListIncidents(cmd.Context(), incidentsLimit)
	if err != nil {
		return err
	}
	counts, err := store.Count(cmd.Context())
	if err != nil && !errors.Is(err, audit.ErrDisabled) {
		return err
	}

	out := cmd.OutOrStdout()
	if incidentsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(incidents)
	}
	printIncidents(out, incidents, counts)
	return nil
}

func printIncidents(w io.Writer, incidents []audit.Incident, counts audit.Counts) {
	head := color.New(color.FgCyan, color.Bold)
	bad := color.New(color.FgRed)
	dim := color.New(color.FgHiBlack)

	_, _ = head.Fprintf(w, "%d incidents, %d speed corrections, %d proximity warnings\n",
		counts.Incidents, counts.SpeedCorrections, counts.ProximityWarnings)

	for _, in := range incidents {
		_, _ = bad.Fprintf(w, "%s  vehicle %d hit %d at %.2fm\n",
			in.Time.Format("2006-01-02 15:04:05"), in.VehicleID, in.OtherID, in.Distance)
		for _, line := range in.Lines {
			_, _ = dim.Fprintf(w, "    %s\n", line)
		}
	}
}
