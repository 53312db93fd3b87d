package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/relayctl/internal/daemon"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/platform"
	"github.com/srg/relayctl/internal/signal"
	"github.com/srg/relayctl/internal/testutils"
	"github.com/srg/relayctl/pkg/config"
	"github.com/srg/relayctl/pkg/connection"
	"github.com/stretchr/testify/suite"
)

var (
	hc06    = peripheral.RawRecord{Name: "HC-06", Address: "98:D3:31:F5:1A:2B"}
	speaker = peripheral.RawRecord{Name: "Speaker", Address: "AA:BB:CC:DD:EE:FF"}
)

const testConfig = `log_level: error
post_command_settle: 0s
post_teardown_settle: 0s
pre_connect_settle: 0s
discovery_timeout: 0s
socket_path: %s
`

// fakeSettings records which settings screens were opened
type fakeSettings struct {
	mu     sync.Mutex
	opened []string
}

func (f *fakeSettings) OpenBluetooth(context.Context) error { return f.open("bluetooth") }
func (f *fakeSettings) OpenLocation(context.Context) error  { return f.open("location") }

func (f *fakeSettings) open(screen string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, screen)
	return nil
}

func (f *fakeSettings) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// CommandTestSuite runs the root command against a fake transport and a
// temporary config file.
type CommandTestSuite struct {
	suite.Suite
	Logger     *logrus.Logger
	Transport  *testutils.FakeTransport
	Settings   *fakeSettings
	Dir        string
	Socket     string
	ConfigPath string

	origTransport func(*config.Config, *logrus.Logger) (*stack, error)
	origSettings  func(*config.Config) peripheral.Settings
}

func (s *CommandTestSuite) SetupSuite() {
	color.NoColor = true
	s.origTransport = transportFactory
	s.origSettings = settingsFactory
}

func (s *CommandTestSuite) TearDownSuite() {
	transportFactory = s.origTransport
	settingsFactory = s.origSettings
}

func (s *CommandTestSuite) SetupTest() {
	s.Logger = testutils.NewTestHelper(s.T()).Logger
	s.Transport = testutils.NewFakeTransport().WithPaired(hc06).WithUnpaired(speaker)
	s.Settings = &fakeSettings{}

	// unix socket paths are length limited, so stay out of t.TempDir
	dir, err := os.MkdirTemp("", "relayctl")
	s.Require().NoError(err)
	s.Dir = dir
	s.T().Cleanup(func() { _ = os.RemoveAll(dir) })
	s.Socket = filepath.Join(dir, "d.sock")
	s.ConfigPath = filepath.Join(dir, "relayctl.yaml")
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte(fmt.Sprintf(testConfig, s.Socket)), 0o600))

	transportFactory = func(*config.Config, *logrus.Logger) (*stack, error) {
		return &stack{Transport: s.Transport, Platform: &platform.Platform{Settings: s.Settings}}, nil
	}
	settingsFactory = func(*config.Config) peripheral.Settings { return s.Settings }

	resetFlags(rootCmd)
}

// resetFlags restores every flag of cmd and its subcommands to its
// default; cobra keeps parsed values between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// ExecuteCommand runs the root command with args and the test config,
// returning stdout and the error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	return s.ExecuteCommandContext(context.Background(), args...)
}

func (s *CommandTestSuite) ExecuteCommandContext(ctx context.Context, args ...string) (string, error) {
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(append([]string{"--config", s.ConfigPath}, args...))
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// StartDaemon serves a manager over the fake transport on the test socket
// until the test ends.
func (s *CommandTestSuite) StartDaemon() *connection.Manager {
	bus := signal.NewBus(0)
	opts := connection.OptionsFromConfig(testutils.FastConfig())
	opts.Signals = bus
	manager := connection.NewManager(s.Transport, s.Logger, opts)
	server := daemon.NewServer(manager, s.Transport, bus, s.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, s.Socket) }()
	s.WaitForSocket()

	s.T().Cleanup(func() {
		cancel()
		<-done
	})
	return manager
}

// WaitForSocket blocks until the daemon socket exists
func (s *CommandTestSuite) WaitForSocket() {
	s.Require().Eventually(func() bool {
		_, err := os.Stat(s.Socket)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "daemon socket MUST appear")
}
