package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/relayctl/discovery"
	"github.com/srg/relayctl/internal/peripheral"
	relaysignal "github.com/srg/relayctl/internal/signal"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List paired and nearby Bluetooth devices",
	Long: `List paired devices, then run a discovery pass for nearby unpaired ones.

Devices whose names look like relay modules (HC-06, HC-05, LINVOR, BT*, JDY)
are flagged in the RELAY column. Paired devices are listed first.`,
	RunE: runScan,
}

var scanFormat string

func init() {
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json); defaults to the config value")
}

// scanResult is one row of scan output
type scanResult struct {
	peripheral.Record
	Match string `json:"match,omitempty"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	format := cfg.OutputFormat
	if scanFormat != "" {
		format = scanFormat
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}

	st, err := transportFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := relaysignal.NewBus(0)
	agg := discovery.NewAggregator(st.Transport, logger, &discovery.Options{
		Platform: st.Platform,
		Signals:  bus,
	})

	records := discoverWithProgress(ctx, cmd.OutOrStdout(), agg, cfg.DiscoveryTimeout)
	if err := ctx.Err(); err != nil {
		return err
	}

	results := make([]scanResult, len(records))
	for i, rec := range records {
		results[i] = scanResult{Record: rec}
		if p, ok := peripheral.MatchName(rec.Name); ok {
			results[i].Match = p.Name
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeScanJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, bus.LastInfo())
		return nil
	}
	return writeScanTable(out, results)
}

func discoverWithProgress(ctx context.Context, out io.Writer, agg *discovery.Aggregator, window time.Duration) []peripheral.Record {
	progress := NewCountdownProgressPrinter(out, "Looking for devices", "scanning", window)
	progress.Start()
	defer progress.Stop()
	return agg.Discover(ctx)
}

func writeScanJSON(w io.Writer, results []scanResult) error {
	if results == nil {
		results = []scanResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func writeScanTable(w io.Writer, results []scanResult) error {
	paired := color.New(color.FgGreen).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	// PAIRED must stay last: tabwriter counts color escapes as width
	fmt.Fprintln(tw, "NAME\tADDRESS\tRELAY\tPAIRED")
	fmt.Fprintln(tw, "----\t-------\t-----\t------")
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = "-"
		}
		isPaired := "no"
		if r.Paired {
			isPaired = paired("yes")
		}
		match := r.Match
		if match == "" {
			match = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, r.ID, match, isPaired)
	}
	return tw.Flush()
}
