package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/relayctl/internal/platform"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:       "settings bluetooth|location",
	Short:     "Open the system Bluetooth or location settings",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"bluetooth", "location"},
	RunE:      runSettings,
}

func runSettings(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	plat := &platform.Platform{Settings: settingsFactory(cfg)}
	logger.WithField("screen", args[0]).Debug("Opening settings")

	switch args[0] {
	case "bluetooth":
		plat.OpenBluetoothSettings(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Opening Bluetooth settings (%s)\n", cfg.BluetoothSettingsCommand)
	case "location":
		plat.OpenLocationSettings(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Opening location settings (%s)\n", cfg.LocationSettingsCommand)
	}
	return nil
}
