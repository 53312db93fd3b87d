// Package rfcomm is the classic Bluetooth serial transport: BlueZ over
// D-Bus lists and discovers devices, and kernel RFCOMM sockets carry the
// command stream.
package rfcomm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

// Options configures a Transport
type Options struct {
	// Channel is the RFCOMM channel of the SPP service. HC-0x modules
	// always listen on 1.
	Channel uint8
	// DiscoveryWindow is how long an inquiry runs
	DiscoveryWindow time.Duration
	// ConnectTimeout bounds a single connect call; zero means no bound
	ConnectTimeout time.Duration
}

type directory interface {
	devices(ctx context.Context) ([]deviceEntry, error)
	discover(ctx context.Context, window time.Duration) ([]deviceEntry, error)
	disconnectDevice(ctx context.Context, addr string) error
}

type dialFunc func(ctx context.Context, addr string, channel uint8, secure bool, logger *logrus.Logger) (peripheral.Session, error)

// Transport implements peripheral.Transport over BlueZ and RFCOMM.
type Transport struct {
	dir    directory
	dial   dialFunc
	opts   Options
	logger *logrus.Logger

	mu       sync.Mutex
	lastAddr string
}

// New creates a Transport using bz for device management.
func New(bz *BlueZ, logger *logrus.Logger, opts *Options) *Transport {
	return newTransport(bz, dialSession, logger, opts)
}

func newTransport(dir directory, dial dialFunc, logger *logrus.Logger, opts *Options) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	o := Options{Channel: 1}
	if opts != nil {
		o = *opts
	}
	if o.Channel == 0 {
		o.Channel = 1
	}
	return &Transport{dir: dir, dial: dial, opts: o, logger: logger}
}

func (t *Transport) ListPaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	entries, err := t.dir.devices(ctx)
	if err != nil {
		return nil, err
	}
	return filterPaired(entries, true), nil
}

func (t *Transport) DiscoverUnpaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	entries, err := t.dir.discover(ctx, t.opts.DiscoveryWindow)
	if err != nil {
		return nil, err
	}
	return filterPaired(entries, false), nil
}

func (t *Transport) ConnectSecure(ctx context.Context, id string) (peripheral.Session, error) {
	return t.connect(ctx, id, true)
}

func (t *Transport) ConnectInsecure(ctx context.Context, id string) (peripheral.Session, error) {
	return t.connect(ctx, id, false)
}

func (t *Transport) connect(ctx context.Context, id string, secure bool) (peripheral.Session, error) {
	addr := strings.ToUpper(strings.TrimSpace(id))
	if t.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.ConnectTimeout)
		defer cancel()
	}

	t.mu.Lock()
	t.lastAddr = addr
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"addr":    addr,
		"channel": t.opts.Channel,
		"secure":  secure,
	}).Debug("Dialing RFCOMM")
	return t.dial(ctx, addr, t.opts.Channel, secure, t.logger)
}

// Disconnect drops the baseband link to the most recently dialed device,
// which also kills any RFCOMM socket still being set up.
func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	addr := t.lastAddr
	t.mu.Unlock()

	if addr == "" {
		return nil
	}
	return t.dir.disconnectDevice(ctx, addr)
}

var _ peripheral.Transport = (*Transport)(nil)
