package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/relayctl/internal/daemon"
	"github.com/srg/relayctl/pkg/config"
)

// controlTimeout bounds requests that never dial the module.
const controlTimeout = 10 * time.Second

type controlSpec struct {
	command string
	use     string
	short   string
	args    cobra.PositionalArgs
	dials   bool
}

var controlSpecs = []controlSpec{
	{command: daemon.CmdStatus, use: "status", short: "Show the daemon connection state", args: cobra.NoArgs},
	{command: daemon.CmdConnect, use: "connect [ADDRESS]", short: "Connect to a relay module, picking one automatically when no address is given", args: cobra.MaximumNArgs(1), dials: true},
	{command: daemon.CmdDisconnect, use: "disconnect", short: "Close the relay connection", args: cobra.NoArgs},
	{command: daemon.CmdReconnect, use: "reconnect", short: "Reconnect to the last relay module", args: cobra.NoArgs, dials: true},
	{command: daemon.CmdOn, use: "on", short: "Activate the relay", args: cobra.NoArgs},
	{command: daemon.CmdOff, use: "off", short: "Deactivate the relay", args: cobra.NoArgs},
	{command: daemon.CmdToggle, use: "toggle", short: "Flip the relay state", args: cobra.NoArgs},
}

// controlCommands builds the daemon client subcommands
func controlCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(controlSpecs))
	for _, spec := range controlSpecs {
		cmd := &cobra.Command{
			Use:   spec.use,
			Short: spec.short,
			Args:  spec.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runControl(cmd, spec, args)
			},
		}
		cmd.Flags().Bool("json", false, "Print the daemon response as JSON")
		cmds = append(cmds, cmd)
	}
	return cmds
}

// requestTimeout allows both link modes to time out, plus the settle pauses.
func requestTimeout(cfg *config.Config, dials bool) time.Duration {
	if !dials {
		return controlTimeout
	}
	return 2*cfg.ConnectTimeout + cfg.PreConnectSettle + cfg.PostTeardownSettle + controlTimeout
}

func runControl(cmd *cobra.Command, spec controlSpec, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")

	req := daemon.Request{Command: spec.command}
	if len(args) == 1 {
		req.Address = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout(cfg, spec.dials))
	defer cancel()

	out := cmd.OutOrStdout()
	var progress *ProgressPrinter
	if spec.dials && !asJSON {
		progress = NewProgressPrinter(out, "Connecting", spec.command)
		progress.Start()
	}

	logger.WithField("command", req.Command).WithField("socket", cfg.SocketPath).Debug("Sending request")
	resp, err := daemon.NewClient(cfg.SocketPath).Call(ctx, req)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	if asJSON {
		if err := writeResponseJSON(out, resp); err != nil {
			return err
		}
	} else {
		writeResponse(out, spec.command, resp)
	}

	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrDaemonFailed, resp.Error)
	}
	return nil
}

func writeResponseJSON(w io.Writer, resp daemon.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func writeResponse(w io.Writer, command string, resp daemon.Response) {
	errLine := color.New(color.FgRed).SprintFunc()
	infoLine := color.New(color.FgGreen).SprintFunc()

	if resp.Error != "" {
		fmt.Fprintln(w, errLine("ERROR: "+resp.Error))
	} else if resp.Info != "" && command != daemon.CmdStatus {
		fmt.Fprintln(w, infoLine(resp.Info))
	}

	state := resp.State
	if resp.Device != "" {
		name := resp.Name
		if name == "" {
			name = resp.Device
		}
		state = fmt.Sprintf("%s to %s (%s)", resp.State, name, resp.Device)
	}
	relay := "off"
	if resp.Active {
		relay = "on"
	}
	fmt.Fprintf(w, "State: %s\n", state)
	if resp.State == "connected" {
		fmt.Fprintf(w, "Relay: %s\n", relay)
	}
}
