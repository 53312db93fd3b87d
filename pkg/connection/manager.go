// Package connection owns the single relay link: it resolves a target,
// connects with a secure-then-insecure fallback and gates command writes
// on the connection state.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/platform"
	"github.com/srg/relayctl/internal/signal"
	"github.com/srg/relayctl/pkg/config"
)

// Options configures a Manager. Zero settle durations disable the pause.
type Options struct {
	Platform *platform.Platform
	Signals  signal.Emitter

	Payloads peripheral.Payloads
	Repeat   int

	PostCommandSettle  time.Duration
	PostTeardownSettle time.Duration
	PreConnectSettle   time.Duration
}

// DefaultOptions returns Options carrying the configuration defaults
func DefaultOptions() *Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig maps the link tuning fields of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) *Options {
	return &Options{
		Payloads:           cfg.Payloads(),
		Repeat:             cfg.CommandRepeat,
		PostCommandSettle:  cfg.PostCommandSettle,
		PostTeardownSettle: cfg.PostTeardownSettle,
		PreConnectSettle:   cfg.PreConnectSettle,
	}
}

type attempt struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager drives the Disconnected -> Connecting -> Connected lifecycle of
// one relay link. At most one session is held at any time and at most one
// connect attempt is pending.
type Manager struct {
	transport peripheral.Transport
	platform  *platform.Platform
	signals   signal.Emitter
	logger    *logrus.Logger
	opts      Options

	mu        sync.Mutex
	state     State
	session   peripheral.Session
	sessionID string
	actuator  bool
	last      *peripheral.Record
	pending   *attempt
	// lookups cancel target resolution still running ahead of an attempt
	lookups    map[uint64]context.CancelFunc
	nextLookup uint64
	// gen is bumped by every connect and disconnect; an attempt whose
	// generation is stale has been superseded.
	gen uint64

	commands *CommandChannel
}

// NewManager creates a disconnected Manager over transport.
func NewManager(transport peripheral.Transport, logger *logrus.Logger, opts *Options) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Signals == nil {
		o.Signals = signal.Discard
	}
	if o.Repeat < 1 {
		o.Repeat = 1
	}
	if o.Payloads.On == nil && o.Payloads.Off == nil {
		o.Payloads = peripheral.DefaultPayloads()
	}

	m := &Manager{
		transport: transport,
		platform:  o.Platform,
		signals:   o.Signals,
		logger:    logger,
		opts:      o,
	}
	m.commands = &CommandChannel{manager: m}
	return m
}

// State returns a snapshot of the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports the last acknowledged actuator state
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actuator
}

// SessionID returns the identifier of the current session, or "" when
// disconnected.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// LastTarget returns the most recent successfully connected record.
func (m *Manager) LastTarget() (peripheral.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return peripheral.Record{}, false
	}
	return *m.last, true
}

// Commands returns the command channel bound to this manager
func (m *Manager) Commands() *CommandChannel { return m.commands }

// ConnectAuto picks the first paired device matching the name heuristics,
// falling back to the unpaired listing, and connects to it.
func (m *Manager) ConnectAuto(ctx context.Context) (peripheral.Record, error) {
	m.signals.Clear()
	m.signals.SetConnecting(true)
	defer m.signals.SetConnecting(false)

	lctx, since, done := m.track(ctx)
	m.platform.Preflight(lctx, m.logger)
	target, err := m.resolve(lctx)
	done()

	if m.stale(since) {
		m.logger.Debug("Connect superseded during device lookup")
		return peripheral.Record{}, peripheral.ErrCanceled
	}
	if err != nil {
		m.logger.WithError(err).Warn("No matching relay module")
		m.signals.Error(peripheral.UserMessage(err))
		return peripheral.Record{}, err
	}

	m.logger.WithFields(logrus.Fields{
		"target": target.ID,
		"name":   target.Name,
		"paired": target.Paired,
	}).Info("Relay module selected")

	return target, m.connect(ctx, target, since)
}

func (m *Manager) resolve(ctx context.Context) (peripheral.Record, error) {
	paired, err := m.transport.ListPaired(ctx)
	if err != nil {
		m.logger.WithError(&peripheral.FetchError{Source: peripheral.SourcePaired, Err: err}).Warn("Device listing failed")
	}
	if rec, ok := peripheral.FirstMatch(paired, true); ok {
		return rec, nil
	}

	unpaired, err := m.transport.DiscoverUnpaired(ctx)
	if err != nil {
		m.logger.WithError(&peripheral.FetchError{Source: peripheral.SourceUnpaired, Err: err}).Warn("Device listing failed")
	}
	if rec, ok := peripheral.FirstMatch(unpaired, false); ok {
		return rec, nil
	}
	return peripheral.Record{}, peripheral.ErrNoMatch
}

// ConnectTo connects to an explicit record, replacing any current session.
func (m *Manager) ConnectTo(ctx context.Context, target peripheral.Record) error {
	if target.ID == "" {
		return fmt.Errorf("connect: record %q has no id", target.Name)
	}

	m.signals.Clear()
	m.signals.SetConnectingID(target.ID)
	defer m.signals.SetConnectingID("")

	lctx, since, done := m.track(ctx)
	m.platform.Preflight(lctx, m.logger)
	done()
	return m.connect(ctx, target, since)
}

// track registers the work a connect does before its attempt exists.
// since is the generation at entry; Disconnect cancels the returned
// context and makes since stale.
func (m *Manager) track(ctx context.Context) (lctx context.Context, since uint64, done func()) {
	lctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	since = m.gen
	m.nextLookup++
	key := m.nextLookup
	if m.lookups == nil {
		m.lookups = make(map[uint64]context.CancelFunc)
	}
	m.lookups[key] = cancel
	m.mu.Unlock()

	return lctx, since, func() {
		m.mu.Lock()
		delete(m.lookups, key)
		m.mu.Unlock()
		cancel()
	}
}

func (m *Manager) stale(since uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != since
}

// Reconnect connects again to the last successfully connected record.
func (m *Manager) Reconnect(ctx context.Context) error {
	target, ok := m.LastTarget()
	if !ok {
		return peripheral.ErrNotConnected
	}
	return m.ConnectTo(ctx, target)
}

// Disconnect cancels any pending attempt and closes the session. It never
// fails; teardown errors are logged.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	pending := m.pending
	sess := m.session
	prev := m.state
	m.session = nil
	m.sessionID = ""
	m.actuator = false
	m.state = State{Phase: Disconnected}
	lookups := m.lookups
	m.lookups = nil
	m.mu.Unlock()

	if pending != nil {
		pending.cancel()
	}
	for _, cancel := range lookups {
		cancel()
	}

	log := m.logger.WithField("state", prev.Phase)
	switch {
	case sess != nil:
		if err := sess.Close(); err != nil {
			log.WithError(err).Warn("Session teardown failed")
		}
	case prev.Phase != Disconnected:
		// Connecting has no session yet; drop whatever half-open link
		// the transport may hold.
		if err := m.transport.Disconnect(ctx); err != nil {
			log.WithError(err).Warn("Transport disconnect failed")
		}
	}

	log.Info("Disconnected")
	m.signals.Info("Disconnected.")
	return nil
}

func (m *Manager) connect(ctx context.Context, target peripheral.Record, since uint64) error {
	att, pause, err := m.begin(ctx, target, since)
	if err != nil {
		return err
	}
	defer m.release(att)

	log := m.logger.WithFields(logrus.Fields{
		"target": target.ID,
		"name":   target.Name,
	})

	if err := sleep(att.ctx, pause); err != nil {
		return m.abandon(att, err)
	}

	first := target.PreferredMode()
	log.WithField("mode", first).Debug("Connecting")
	sess, err := peripheral.Connect(att.ctx, m.transport, target.ID, first)
	if err != nil {
		firstErr := &peripheral.AttemptError{Target: target, Mode: first, Err: err}
		log.WithError(firstErr).Warn("Connect attempt failed, trying the other mode")
		if att.ctx.Err() != nil {
			return m.abandon(att, firstErr)
		}

		second := first.Opposite()
		if !m.setAttemptMode(att, second) {
			return peripheral.ErrCanceled
		}
		sess, err = peripheral.Connect(att.ctx, m.transport, target.ID, second)
		if err != nil {
			exhausted := &peripheral.ExhaustedError{
				Target: target,
				First:  firstErr,
				Last:   &peripheral.AttemptError{Target: target, Mode: second, Err: err},
			}
			if att.ctx.Err() != nil {
				return m.abandon(att, exhausted)
			}
			return m.fail(att, exhausted)
		}
	}

	return m.establish(att, target, sess)
}

// begin waits out any pending attempt, tears down the current session and
// registers a new attempt. It returns the pause to observe before dialing.
// A connect whose generation moved on since entry is canceled.
func (m *Manager) begin(ctx context.Context, target peripheral.Record, since uint64) (*attempt, time.Duration, error) {
	m.mu.Lock()
	if m.gen != since {
		m.mu.Unlock()
		return nil, 0, peripheral.ErrCanceled
	}
	for m.pending != nil {
		p := m.pending
		m.gen++
		gen := m.gen
		m.mu.Unlock()

		p.cancel()
		select {
		case <-p.done:
		case <-ctx.Done():
			m.giveUp(gen)
			return nil, 0, ctx.Err()
		}
		m.mu.Lock()
	}

	pause := m.opts.PreConnectSettle
	sess := m.session
	if sess != nil {
		pause = m.opts.PostTeardownSettle
		m.session = nil
		m.sessionID = ""
		m.actuator = false
	}

	m.gen++
	actx, cancel := context.WithCancel(ctx)
	att := &attempt{gen: m.gen, ctx: actx, cancel: cancel, done: make(chan struct{})}
	m.pending = att
	m.state = State{Phase: Connecting, Target: target, Mode: target.PreferredMode()}
	m.mu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			m.logger.WithError(err).Warn("Previous session teardown failed")
		}
	}
	return att, pause, nil
}

// giveUp resolves the state of an attempt superseded at gen by a connect
// that then ran out of time. The superseded attempt leaves state alone,
// so unless it already established a session the link is Disconnected.
func (m *Manager) giveUp(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.session != nil {
		return
	}
	m.state = State{Phase: Disconnected}
}

func (m *Manager) release(att *attempt) {
	m.mu.Lock()
	if m.pending == att {
		m.pending = nil
	}
	m.mu.Unlock()
	att.cancel()
	close(att.done)
}

func (m *Manager) setAttemptMode(att *attempt, mode peripheral.Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != att.gen {
		return false
	}
	m.state.Mode = mode
	return true
}

// abandon resolves an attempt interrupted by context cancellation. A
// superseded attempt leaves state alone and reports ErrCanceled.
func (m *Manager) abandon(att *attempt, err error) error {
	m.mu.Lock()
	superseded := m.gen != att.gen
	if !superseded {
		m.state = State{Phase: Disconnected}
	}
	m.mu.Unlock()

	if superseded {
		return peripheral.ErrCanceled
	}
	return fmt.Errorf("connect: %w", err)
}

func (m *Manager) fail(att *attempt, err *peripheral.ExhaustedError) error {
	m.mu.Lock()
	superseded := m.gen != att.gen
	if !superseded {
		m.state = State{Phase: Disconnected}
	}
	m.mu.Unlock()

	if superseded {
		return peripheral.ErrCanceled
	}
	m.logger.WithError(err).Error("Connection failed")
	m.signals.Error(peripheral.UserMessage(err))
	return err
}

func (m *Manager) establish(att *attempt, target peripheral.Record, sess peripheral.Session) error {
	m.mu.Lock()
	if m.gen != att.gen {
		m.mu.Unlock()
		if err := sess.Close(); err != nil {
			m.logger.WithError(err).Debug("Closing superseded session failed")
		}
		return peripheral.ErrCanceled
	}
	id := ulid.Make().String()
	m.session = sess
	m.sessionID = id
	m.actuator = false
	m.state = State{Phase: Connected, Target: target}
	last := target
	m.last = &last
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"target":  target.ID,
		"name":    target.Name,
		"session": id,
	}).Info("Connected")
	m.signals.Info("Connected to " + target.DisplayName())

	m.commands.prime(att.ctx, sess)
	return nil
}

// current returns the live session and its generation.
func (m *Manager) current() (peripheral.Session, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != Connected || m.session == nil {
		return nil, 0, false
	}
	return m.session, m.gen, true
}

// setActuator records the acknowledged actuator state unless the session
// it was sent on has since been replaced.
func (m *Manager) setActuator(gen uint64, on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.actuator = on
	return true
}

// lost drops a session whose link the transport reported gone.
func (m *Manager) lost(gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	sess := m.session
	m.session = nil
	m.sessionID = ""
	m.actuator = false
	m.state = State{Phase: Disconnected}
	m.mu.Unlock()

	m.logger.WithError(cause).Warn("Link lost")
	if sess != nil {
		if err := sess.Close(); err != nil {
			m.logger.WithError(err).Debug("Closing lost session failed")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isLinkGone(err error) bool {
	return errors.Is(err, peripheral.ErrNotConnected)
}
