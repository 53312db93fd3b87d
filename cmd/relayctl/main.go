package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Control Bluetooth serial relay modules",
	Long: `Control HC-05/HC-06 style Bluetooth serial relay and alarm modules:

- Discover paired and nearby modules
- Connect with automatic secure/insecure fallback
- Switch the relay on, off or toggle it
- Keep the link open in a background daemon between commands`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		// daemon errors were printed with the response
		if errors.Is(err, ErrDaemonFailed) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("relayctl %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(settingsCmd)
	for _, cmd := range controlCommands() {
		rootCmd.AddCommand(cmd)
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("socket", "", "Daemon control socket (default $XDG_RUNTIME_DIR/relayctl.sock)")
	rootCmd.PersistentFlags().String("transport", "", "Transport: rfcomm or ble (overrides config)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
