package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/relayctl/internal/daemon"
	"github.com/srg/relayctl/internal/groutine"
	relaysignal "github.com/srg/relayctl/internal/signal"
	"github.com/srg/relayctl/pkg/connection"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon that holds the relay connection",
	Long: `Run in the foreground and keep at most one relay session open.

The control commands (connect, on, off, toggle, status, ...) talk to this
process over a unix socket. Stop it with Ctrl+C; the session is closed on
exit.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	st, err := transportFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := relaysignal.NewBus(0)
	opts := connection.OptionsFromConfig(cfg)
	opts.Platform = st.Platform
	opts.Signals = bus

	manager := connection.NewManager(st.Transport, logger, opts)
	server := daemon.NewServer(manager, st.Transport, bus, logger)

	drained := groutine.Go(ctx, "signal-log", func(ctx context.Context) {
		logSignals(ctx, bus, logger)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "relayctl daemon listening on %s (transport %s)\n", cfg.SocketPath, cfg.Transport)
	err = server.Serve(ctx, cfg.SocketPath)
	stop()
	<-drained

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logSignals mirrors the outward signals into the log until ctx is done,
// then flushes the backlog.
func logSignals(ctx context.Context, bus *relaysignal.Bus, logger *logrus.Logger) {
	var seenDropped int64
	for {
		select {
		case <-ctx.Done():
			for _, ev := range bus.Drain() {
				logEvent(logger, ev)
			}
			written, dropped := bus.Stats()
			logger.WithFields(logrus.Fields{
				"written": written,
				"dropped": dropped,
			}).Debug("Signal log stopped")
			return
		case ev, ok := <-bus.Events():
			if !ok {
				return
			}
			if _, dropped := bus.Stats(); dropped > seenDropped {
				logger.WithField("dropped", dropped-seenDropped).Warn("Signal events dropped")
				seenDropped = dropped
			}
			logEvent(logger, ev)
		}
	}
}

func logEvent(logger *logrus.Logger, ev relaysignal.Event) {
	entry := logger.WithField("signal", ev.Kind)
	switch ev.Kind {
	case relaysignal.KindInfo:
		if ev.Message != "" {
			entry.Info(ev.Message)
		}
	case relaysignal.KindError:
		if ev.Message != "" {
			entry.Warn(ev.Message)
		}
	default:
		entry.WithFields(logrus.Fields{
			"scanning":      ev.Progress.Scanning,
			"connecting":    ev.Progress.Connecting,
			"connecting_id": ev.Progress.ConnectingID,
		}).Debug("Progress")
	}
}
