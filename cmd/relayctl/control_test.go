package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/relayctl/internal/daemon"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/testutils"
	"github.com/srg/relayctl/pkg/config"
	"github.com/stretchr/testify/suite"
)

type ControlCommandTestSuite struct {
	CommandTestSuite
}

func (s *ControlCommandTestSuite) TestStatusWhileDisconnected() {
	s.StartDaemon()

	out, err := s.ExecuteCommand("status")
	s.Require().NoError(err)
	s.Equal("State: disconnected\n", out)
}

func (s *ControlCommandTestSuite) TestConnectAndSwitch() {
	// GOAL: the client commands drive one daemon session end to end
	//
	// TEST SCENARIO: connect → on → toggle → disconnect, checking output and writes

	s.StartDaemon()

	out, err := s.ExecuteCommand("connect")
	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T()).Assert(out, `Connected to HC-06
State: connected to HC-06 (98:D3:31:F5:1A:2B)
Relay: off
`)

	out, err = s.ExecuteCommand("on")
	s.Require().NoError(err)
	s.Contains(out, "Alarm activated.")
	s.Contains(out, "Relay: on")

	out, err = s.ExecuteCommand("toggle")
	s.Require().NoError(err)
	s.Contains(out, "Alarm deactivated.")
	s.Contains(out, "Relay: off")

	s.Equal([]string{
		"OFF\r\n",
		"ON\r\n", "ON\r\n", "ON\r\n",
		"OFF\r\n", "OFF\r\n", "OFF\r\n",
	}, s.Transport.Writes(), "priming write then three writes per command MUST reach the module")

	out, err = s.ExecuteCommand("disconnect")
	s.Require().NoError(err)
	s.Equal("Disconnected.\nState: disconnected\n", out)
	s.True(s.Transport.Sessions()[0].Closed())
}

func (s *ControlCommandTestSuite) TestConnectByAddress() {
	s.Transport = testutils.NewFakeTransport()
	s.StartDaemon()

	out, err := s.ExecuteCommand("connect", "00:11:22:33:44:55")
	s.Require().NoError(err)
	s.Contains(out, "State: connected to 00:11:22:33:44:55 (00:11:22:33:44:55)")
	s.Equal(peripheral.Insecure, s.Transport.Sessions()[0].Mode, "unknown address MUST try insecure first")
}

func (s *ControlCommandTestSuite) TestJSONResponse() {
	s.StartDaemon()

	_, err := s.ExecuteCommand("connect")
	s.Require().NoError(err)

	out, err := s.ExecuteCommand("status", "--json")
	s.Require().NoError(err)
	s.JSONEq(`{
		"state": "connected",
		"device": "98:D3:31:F5:1A:2B",
		"name": "HC-06",
		"active": false
	}`, out)
}

func (s *ControlCommandTestSuite) TestJSONFlagIsPerCommand() {
	s.StartDaemon()

	_, err := s.ExecuteCommand("status", "--json")
	s.Require().NoError(err)

	out, err := s.ExecuteCommand("connect")
	s.Require().NoError(err)
	s.Contains(out, "State: connected to HC-06", "--json on status MUST NOT switch connect to JSON")
}

func (s *ControlCommandTestSuite) TestDaemonErrorIsReported() {
	s.Run("command while disconnected", func() {
		s.SetupTest()
		s.StartDaemon()

		out, err := s.ExecuteCommand("on")
		s.Require().Error(err)
		s.ErrorIs(err, ErrDaemonFailed)
		s.Contains(out, "ERROR: not connected")
		s.Empty(s.Transport.Writes(), "MUST NOT write while disconnected")
	})

	s.Run("connect exhausted prints pairing guidance", func() {
		s.SetupTest()
		s.Transport.
			FailMode(peripheral.Secure, errors.New("refused")).
			FailMode(peripheral.Insecure, errors.New("refused"))
		s.StartDaemon()

		out, err := s.ExecuteCommand("connect")
		s.Require().ErrorIs(err, ErrDaemonFailed)
		s.Contains(out, "ERROR: "+peripheral.MsgExhausted)
		s.Contains(out, "State: disconnected")
	})
}

func (s *ControlCommandTestSuite) TestWithoutDaemon() {
	_, err := s.ExecuteCommand("status")
	s.Require().Error(err)
	s.NotErrorIs(err, ErrDaemonFailed)
	s.Contains(err.Error(), "relayctl serve")
}

func (s *ControlCommandTestSuite) TestServe() {
	// GOAL: serve answers requests until its context ends, then drops the session
	//
	// TEST SCENARIO: serve in background → connect via client → cancel → session closed

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		_, err := s.ExecuteCommandContext(ctx, "serve")
		done <- err
	}()
	s.WaitForSocket()

	resp, err := daemon.NewClient(s.Socket).Call(context.Background(), daemon.Request{Command: daemon.CmdConnect})
	s.Require().NoError(err)
	s.Equal("connected", resp.State)

	cancel()
	select {
	case err := <-done:
		s.NoError(err, "serve MUST exit cleanly on cancel")
	case <-time.After(2 * time.Second):
		s.FailNow("serve MUST stop when its context is canceled")
	}
	s.True(s.Transport.Sessions()[0].Closed(), "shutdown MUST close the session")
}

func (s *ControlCommandTestSuite) TestRequestTimeout() {
	cfg := config.DefaultConfig()

	s.Equal(controlTimeout, requestTimeout(cfg, false))
	s.Equal(2*cfg.ConnectTimeout+cfg.PreConnectSettle+cfg.PostTeardownSettle+controlTimeout, requestTimeout(cfg, true))
}

func TestControlCommandTestSuite(t *testing.T) {
	suite.Run(t, new(ControlCommandTestSuite))
}
