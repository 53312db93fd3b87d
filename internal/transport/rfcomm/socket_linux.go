//go:build linux

package rfcomm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/groutine"
	"github.com/srg/relayctl/internal/peripheral"
	"golang.org/x/sys/unix"
)

// RFCOMM socket options from <bluetooth/rfcomm.h>; x/sys does not export them.
const (
	solRFCOMM       = 18
	rfcommLM        = 0x03
	rfcommLMAuth    = 0x0002
	rfcommLMEncrypt = 0x0004
)

const pollTimeoutMs = 200

// socketSession is a connected RFCOMM stream socket. A background loop
// drains inbound bytes into an inbox so the peer never blocks on a full
// receive window.
type socketSession struct {
	fd     int
	addr   string
	logger *logrus.Entry
	inbox  *inbox

	writeMu   sync.Mutex
	lost      atomic.Bool
	cancel    context.CancelFunc
	done      <-chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func dialSession(ctx context.Context, addr string, channel uint8, secure bool, logger *logrus.Logger) (peripheral.Session, error) {
	mac, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm socket: %w", err)
	}

	lm := 0
	if secure {
		lm = rfcommLMAuth | rfcommLMEncrypt
	}
	if err := unix.SetsockoptInt(fd, solRFCOMM, rfcommLM, lm); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set rfcomm link mode: %w", err)
	}

	// connect(2) blocks for the whole page/auth exchange; shutting the
	// socket down from another goroutine is the only way to abort it
	var aborted atomic.Bool
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			aborted.Store(true)
			_ = unix.Shutdown(fd, unix.SHUT_RDWR)
		case <-stop:
		}
	}()

	err = unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: mac, Channel: channel})
	close(stop)
	<-watcherDone

	if err != nil || aborted.Load() {
		_ = unix.Close(fd)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rfcomm connect %s channel %d: %w", addr, channel, err)
	}

	s := &socketSession{
		fd:    fd,
		addr:  addr,
		inbox: newInbox(defaultInboxSize),
		logger: logger.WithFields(logrus.Fields{
			"addr":    addr,
			"channel": channel,
			"secure":  secure,
		}),
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = groutine.Go(loopCtx, "rfcomm-read", s.readLoop)

	s.logger.Debug("RFCOMM socket connected")
	return s, nil
}

func (s *socketSession) readLoop(ctx context.Context) {
	buf := make([]byte, 256)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ready, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.logger.WithError(err).Warn("RFCOMM poll failed")
			s.lost.Store(true)
			return
		}
		if ready == 0 {
			continue
		}

		n, err := unix.Read(s.fd, buf)
		if n > 0 {
			s.inbox.push(buf[:n])
			s.logger.WithField("bytes", n).Trace("RFCOMM data received")
		}
		switch {
		case err == nil && n == 0:
			s.logger.Debug("RFCOMM peer closed the link")
			s.lost.Store(true)
			return
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			if ctx.Err() == nil {
				s.logger.WithError(err).Debug("RFCOMM read failed")
			}
			s.lost.Store(true)
			return
		}
	}
}

func (s *socketSession) Write(ctx context.Context, payload []byte) error {
	if s.lost.Load() {
		return fmt.Errorf("rfcomm write: %w", peripheral.ErrNotConnected)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for off := 0; off < len(payload); {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Write(s.fd, payload[off:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return writeError(err)
		}
		off += n
	}
	return nil
}

func writeError(err error) error {
	switch {
	case errors.Is(err, unix.EPIPE),
		errors.Is(err, unix.ENOTCONN),
		errors.Is(err, unix.ECONNRESET),
		errors.Is(err, unix.EHOSTDOWN),
		errors.Is(err, unix.EBADF):
		return fmt.Errorf("rfcomm write: %w: %w", peripheral.ErrNotConnected, err)
	default:
		return fmt.Errorf("rfcomm write: %w", err)
	}
}

func (s *socketSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done

		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.closeErr = unix.Close(s.fd)

		if tail := s.inbox.take(); len(tail) > 0 {
			s.logger.WithField("data", fmt.Sprintf("%q", tail)).Debug("Unread module output")
		}
		s.logger.WithFields(logrus.Fields{
			"received": s.inbox.received.Load(),
			"dropped":  s.inbox.dropped.Load(),
		}).Debug("RFCOMM socket closed")
	})
	return s.closeErr
}
