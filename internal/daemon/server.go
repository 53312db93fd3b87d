package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/groutine"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/signal"
	"github.com/srg/relayctl/pkg/connection"
)

// requestTimeout bounds how long a client may take to send its request.
const requestTimeout = 5 * time.Second

// Server answers control requests for a single Manager. Requests run
// concurrently so a disconnect can cancel a connect still in flight.
type Server struct {
	manager   *connection.Manager
	transport peripheral.Transport
	bus       *signal.Bus
	logger    *logrus.Logger
}

// NewServer creates a Server. bus must be the Emitter the manager was
// built with; its last messages are echoed back to clients.
func NewServer(manager *connection.Manager, transport peripheral.Transport, bus *signal.Bus, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if bus == nil {
		bus = signal.NewBus(0)
	}
	return &Server{manager: manager, transport: transport, bus: bus, logger: logger}
}

// Serve listens on the unix socket at path until ctx is done, then drops
// the session and removes the socket.
func (s *Server) Serve(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", path, err)
	}
	defer os.Remove(path)
	if err := os.Chmod(path, 0o700); err != nil {
		s.logger.WithError(err).Warn("Failed to restrict socket permissions")
	}

	stopped := groutine.Go(ctx, "daemon-shutdown", func(ctx context.Context) {
		<-ctx.Done()
		_ = ln.Close()
	})

	s.logger.WithField("socket", path).Info("Daemon listening")
	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}
		groutine.Go(ctx, "daemon-conn", func(ctx context.Context) {
			s.handleConn(ctx, conn)
		})
	}

	cancel()
	<-stopped
	s.logger.Info("Daemon shutting down")
	_ = s.manager.Disconnect(context.Background())
	return acceptErr
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.reply(conn, Response{Error: "invalid request: " + err.Error()})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.reply(conn, s.handleRequest(ctx, req))
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.WithError(err).Debug("Failed to write response")
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	log := s.logger.WithFields(logrus.Fields{
		"command": req.Command,
		"address": req.Address,
	})
	log.Debug("Handling request")

	var err error
	var info string
	switch strings.ToLower(strings.TrimSpace(req.Command)) {
	case CmdStatus:
		return s.status("")

	case CmdConnect:
		if req.Address == "" {
			_, err = s.manager.ConnectAuto(ctx)
		} else {
			var target peripheral.Record
			target, err = s.resolve(ctx, req.Address)
			if err == nil {
				err = s.manager.ConnectTo(ctx, target)
			}
		}
		info = s.bus.LastInfo()

	case CmdDisconnect:
		err = s.manager.Disconnect(ctx)
		info = s.bus.LastInfo()

	case CmdReconnect:
		err = s.manager.Reconnect(ctx)
		info = s.bus.LastInfo()

	// Rejected while disconnected; Send itself would be a silent no-op.
	case CmdOn, CmdOff:
		if !s.manager.State().IsConnected() {
			err = peripheral.ErrNotConnected
			break
		}
		cmd, _ := peripheral.ParseCommand(req.Command)
		err = s.manager.Commands().Send(ctx, cmd)
		info = s.bus.LastInfo()

	case CmdToggle:
		if !s.manager.State().IsConnected() {
			err = peripheral.ErrNotConnected
			break
		}
		_, err = s.manager.Commands().Toggle(ctx)
		info = s.bus.LastInfo()

	default:
		return Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}

	if err != nil {
		log.WithError(err).Info("Request failed")
		resp := s.status("")
		resp.Error = peripheral.UserMessage(err)
		return resp
	}
	return s.status(info)
}

// resolve builds a record for an explicit address, picking up the name
// and pairing state when BlueZ already knows the device.
func (s *Server) resolve(ctx context.Context, address string) (peripheral.Record, error) {
	id := strings.ToUpper(strings.TrimSpace(address))
	paired, err := s.transport.ListPaired(ctx)
	if err != nil {
		s.logger.WithError(&peripheral.FetchError{Source: peripheral.SourcePaired, Err: err}).Warn("Device listing failed")
	}
	for _, raw := range paired {
		if strings.EqualFold(raw.Key(), id) {
			if rec, ok := peripheral.NewRecord(raw, true); ok {
				return rec, nil
			}
		}
	}
	rec, ok := peripheral.NewRecord(peripheral.RawRecord{Address: id}, false)
	if !ok {
		return peripheral.Record{}, fmt.Errorf("invalid address %q", address)
	}
	return rec, nil
}

func (s *Server) status(info string) Response {
	state := s.manager.State()
	resp := Response{
		State:  state.Phase.String(),
		Active: s.manager.Active(),
		Info:   info,
	}
	if state.Phase != connection.Disconnected {
		resp.Device = state.Target.ID
		resp.Name = state.Target.Name
	}
	return resp
}
