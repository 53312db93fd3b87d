// Package goble is a serial transport over BLE UART characteristics for
// relay boards built on HM-10 style modules.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

// chunkSize keeps writes inside the default ATT MTU.
const chunkSize = ble.DefaultMTU - 3

// Options configures a Transport
type Options struct {
	ScanWindow     time.Duration
	ConnectTimeout time.Duration
}

type scanFunc func(ctx context.Context, allowDup bool, h ble.AdvHandler) error

type dialFunc func(ctx context.Context, addr string) (uartClient, error)

// Transport implements peripheral.Transport over go-ble. BLE has no
// bonded-device listing or authenticated serial channel here, so paired
// listings are empty and secure connects report ErrUnsupported.
type Transport struct {
	opts   Options
	logger *logrus.Logger

	mu   sync.Mutex
	scan scanFunc
	dial dialFunc
	stop func() error
}

// New creates a Transport. The adapter is opened on first use.
func New(logger *logrus.Logger, opts *Options) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	t := &Transport{logger: logger}
	if opts != nil {
		t.opts = *opts
	}
	return t
}

func (t *Transport) adapter() (scanFunc, dialFunc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scan != nil {
		return t.scan, t.dial, nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, nil, fmt.Errorf("open ble adapter: %w", normalizeError(err))
	}
	t.scan = dev.Scan
	t.dial = func(ctx context.Context, addr string) (uartClient, error) {
		c, err := dev.Dial(ctx, ble.NewAddr(addr))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	t.stop = dev.Stop
	return t.scan, t.dial, nil
}

// Close releases the adapter if it was opened
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return nil
	}
	err := t.stop()
	t.scan, t.dial, t.stop = nil, nil, nil
	return err
}

func (t *Transport) ListPaired(context.Context) ([]peripheral.RawRecord, error) {
	return nil, nil
}

// DiscoverUnpaired scans for the configured window and returns one record
// per advertising address, keeping the last non-empty name seen.
func (t *Transport) DiscoverUnpaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	scan, _, err := t.adapter()
	if err != nil {
		return nil, err
	}

	if t.opts.ScanWindow > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.ScanWindow)
		defer cancel()
	}

	seen := hashmap.New[string, peripheral.RawRecord]()
	handler := func(adv ble.Advertisement) {
		addr := strings.ToUpper(adv.Addr().String())
		rec := peripheral.RawRecord{Name: adv.LocalName(), Address: addr}

		prev, existing := seen.GetOrInsert(addr, rec)
		if !existing {
			t.logger.WithFields(logrus.Fields{
				"address": addr,
				"name":    rec.Name,
			}).Debug("Discovered BLE device")
			return
		}
		if rec.Name != "" && rec.Name != prev.Name {
			seen.Set(addr, rec)
		}
	}

	t.logger.WithField("window", t.opts.ScanWindow).Debug("Starting BLE scan")
	err = scan(ctx, false, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("ble scan: %w", normalizeError(err))
	}

	out := make([]peripheral.RawRecord, 0, seen.Len())
	seen.Range(func(_ string, rec peripheral.RawRecord) bool {
		out = append(out, rec)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })

	t.logger.WithField("device_count", len(out)).Debug("BLE scan completed")
	return out, nil
}

func (t *Transport) ConnectSecure(context.Context, string) (peripheral.Session, error) {
	return nil, fmt.Errorf("secure ble serial link: %w", peripheral.ErrUnsupported)
}

func (t *Transport) ConnectInsecure(ctx context.Context, id string) (peripheral.Session, error) {
	_, dial, err := t.adapter()
	if err != nil {
		return nil, err
	}

	if t.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.ConnectTimeout)
		defer cancel()
	}

	log := t.logger.WithField("address", id)
	log.Debug("Dialing BLE device")
	client, err := dial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ble dial %s: %w", id, normalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			log.WithError(cancelErr).Warn("Failed to cancel connection after profile discovery failure")
		}
		return nil, fmt.Errorf("ble discover profile: %w", normalizeError(err))
	}

	char, noRsp := findUART(profile)
	if char == nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			log.WithError(cancelErr).Warn("Failed to cancel connection")
		}
		return nil, fmt.Errorf("ble device %s has no serial characteristic: %w", id, peripheral.ErrUnsupported)
	}

	log.WithFields(logrus.Fields{
		"characteristic": char.UUID.String(),
		"no_response":    noRsp,
	}).Debug("BLE serial characteristic found")
	return &session{client: client, char: char, noRsp: noRsp}, nil
}

// Disconnect is a no-op: an unfinished dial is aborted through its context.
func (t *Transport) Disconnect(context.Context) error {
	return nil
}

type session struct {
	client uartClient
	char   *ble.Characteristic
	noRsp  bool

	mu     sync.Mutex
	closed bool
}

func (s *session) Write(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("ble write: %w", peripheral.ErrNotConnected)
	}
	for off := 0; off < len(payload); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+chunkSize, len(payload))
		if err := s.client.WriteCharacteristic(s.char, payload[off:end], s.noRsp); err != nil {
			return fmt.Errorf("ble write: %w", normalizeError(err))
		}
	}
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.CancelConnection()
}

var _ peripheral.Transport = (*Transport)(nil)
