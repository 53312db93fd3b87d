// Package discovery merges the paired and unpaired device listings of a
// transport into one ordered candidate list.
package discovery

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/platform"
	"github.com/srg/relayctl/internal/signal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MsgNoDevices is published when a pass yields no devices.
const MsgNoDevices = "No devices found. Check that Bluetooth is on and location access is enabled."

// Options configures an Aggregator
type Options struct {
	Platform *platform.Platform
	Signals  signal.Emitter
}

// Aggregator runs on-demand discovery passes
type Aggregator struct {
	transport peripheral.Transport
	platform  *platform.Platform
	signals   signal.Emitter
	logger    *logrus.Logger
}

// NewAggregator creates an Aggregator over transport
func NewAggregator(transport peripheral.Transport, logger *logrus.Logger, opts *Options) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &Options{}
	}
	signals := opts.Signals
	if signals == nil {
		signals = signal.Discard
	}

	return &Aggregator{
		transport: transport,
		platform:  opts.Platform,
		signals:   signals,
		logger:    logger,
	}
}

// Discover lists paired then unpaired devices and returns them merged by
// id and sorted. Listing failures are logged and yield fewer results;
// Discover itself never fails.
func (a *Aggregator) Discover(ctx context.Context) []peripheral.Record {
	a.signals.Clear()
	a.signals.SetScanning(true)
	defer a.signals.SetScanning(false)

	a.platform.Preflight(ctx, a.logger)

	byID := orderedmap.New[string, peripheral.Record]()

	paired, err := a.transport.ListPaired(ctx)
	if err != nil {
		a.logFetchError(&peripheral.FetchError{Source: peripheral.SourcePaired, Err: err})
	}
	for _, raw := range paired {
		if rec, ok := peripheral.NewRecord(raw, true); ok {
			byID.Set(rec.ID, rec)
		}
	}

	unpaired, err := a.transport.DiscoverUnpaired(ctx)
	if err != nil {
		a.logFetchError(&peripheral.FetchError{Source: peripheral.SourceUnpaired, Err: err})
	}
	for _, raw := range unpaired {
		rec, ok := peripheral.NewRecord(raw, false)
		if !ok {
			continue
		}
		// Paired status wins on id collision.
		if _, exists := byID.Get(rec.ID); !exists {
			byID.Set(rec.ID, rec)
		}
	}

	records := make([]peripheral.Record, 0, byID.Len())
	for pair := byID.Oldest(); pair != nil; pair = pair.Next() {
		records = append(records, pair.Value)
	}
	Sort(records)

	a.logger.WithFields(logrus.Fields{
		"paired":   len(paired),
		"unpaired": len(unpaired),
		"devices":  len(records),
	}).Info("Discovery completed")

	if len(records) == 0 {
		a.signals.Info(MsgNoDevices)
	}

	return records
}

func (a *Aggregator) logFetchError(err *peripheral.FetchError) {
	a.logger.WithError(err.Err).WithField("source", err.Source).Warn("Device listing failed")
}

// Sort orders records paired first, then by case-insensitive name, then
// by id.
func Sort(records []peripheral.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Paired != b.Paired {
			return a.Paired
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}
