package platform

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

// DesktopPermissions grants everything: desktop Bluetooth stacks gate
// access through group membership, not runtime prompts.
type DesktopPermissions struct {
	Logger *logrus.Logger
}

func (d DesktopPermissions) Request(_ context.Context, perms ...peripheral.Permission) error {
	if d.Logger != nil {
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = p.String()
		}
		d.Logger.WithField("permissions", strings.Join(names, ",")).Debug("Runtime permissions not required on this platform")
	}
	return nil
}

// CommandSettings opens settings screens by launching external programs.
type CommandSettings struct {
	Bluetooth string
	Location  string

	// run starts a command without waiting for it; overridable in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewCommandSettings creates a launcher for the given command lines.
func NewCommandSettings(bluetooth, location string) *CommandSettings {
	return &CommandSettings{Bluetooth: bluetooth, Location: location, run: startDetached}
}

func (s *CommandSettings) OpenBluetooth(ctx context.Context) error {
	return s.launch(ctx, s.Bluetooth)
}

func (s *CommandSettings) OpenLocation(ctx context.Context) error {
	return s.launch(ctx, s.Location)
}

func (s *CommandSettings) launch(ctx context.Context, cmdline string) error {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return fmt.Errorf("no settings command configured: %w", peripheral.ErrUnsupported)
	}
	run := s.run
	if run == nil {
		run = startDetached
	}
	return run(ctx, fields[0], fields[1:]...)
}

func startDetached(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
