package connection

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

// Messages published after an acknowledged command.
const (
	MsgActivated   = "Alarm activated."
	MsgDeactivated = "Alarm deactivated."
)

// CommandChannel writes ON/OFF payloads over the manager's session.
// Sends are serialized; a send while not connected is a silent no-op.
type CommandChannel struct {
	manager *Manager
	mu      sync.Mutex
}

// Send writes the payload for cmd the configured number of times, waits
// for the relay to settle and records the new actuator state. A failed
// write leaves the actuator state unchanged.
func (c *CommandChannel) Send(ctx context.Context, cmd peripheral.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.manager
	sess, gen, ok := m.current()
	if !ok {
		m.logger.WithField("command", cmd).Debug("Command ignored, not connected")
		return nil
	}

	log := m.logger.WithFields(logrus.Fields{
		"command": cmd,
		"session": m.SessionID(),
	})

	payload := m.opts.Payloads.For(cmd)
	for i := 1; i <= m.opts.Repeat; i++ {
		if err := sess.Write(ctx, payload); err != nil {
			serr := &peripheral.SendError{Command: cmd, Attempt: i, Err: err}
			log.WithError(serr).Error("Command write failed")
			m.signals.Error(peripheral.UserMessage(serr))
			if isLinkGone(err) {
				m.lost(gen, serr)
			}
			return serr
		}
	}

	if d := m.opts.PostCommandSettle; d > 0 {
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}

	if !m.setActuator(gen, cmd == peripheral.On) {
		log.Debug("Session replaced before the command settled")
		return nil
	}

	log.WithField("repeat", m.opts.Repeat).Info("Command sent")
	if cmd == peripheral.On {
		m.signals.Info(MsgActivated)
	} else {
		m.signals.Info(MsgDeactivated)
	}
	return nil
}

// Toggle sends the command opposite to the current actuator state.
func (c *CommandChannel) Toggle(ctx context.Context) (peripheral.Command, error) {
	cmd := peripheral.On
	if c.manager.Active() {
		cmd = peripheral.Off
	}
	return cmd, c.Send(ctx, cmd)
}

// prime sends one OFF so the relay starts from a known state. Failure is
// not fatal to the connection.
func (c *CommandChannel) prime(ctx context.Context, sess peripheral.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.manager
	if err := sess.Write(ctx, m.opts.Payloads.For(peripheral.Off)); err != nil {
		m.logger.WithError(err).Warn("Priming write failed")
	}
}
