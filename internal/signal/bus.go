// Package signal carries the outward signals of the core to presentation
// layers: informational messages, error messages and progress flags.
package signal

import "sync"

// Kind classifies an Event.
type Kind int

const (
	KindInfo Kind = iota
	KindError
	KindProgress
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindError:
		return "error"
	case KindProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Progress is the snapshot of the boolean progress flags.
type Progress struct {
	Scanning     bool   `json:"scanning"`
	Connecting   bool   `json:"connecting"`
	ConnectingID string `json:"connecting_id,omitempty"`
}

// Event is one published signal. Progress is set on every event.
type Event struct {
	Kind     Kind
	Message  string
	Progress Progress
}

// Emitter is what the core components publish through.
type Emitter interface {
	Info(msg string)
	Error(msg string)
	Clear()
	SetScanning(on bool)
	SetConnecting(on bool)
	SetConnectingID(id string)
}

// Bus is an Emitter that keeps the latest messages and flags and fans
// events out on a ring channel.
type Bus struct {
	mu       sync.RWMutex
	info     string
	err      string
	progress Progress
	events   *RingChannel[Event]
}

// DefaultBufferSize is the event backlog kept for slow readers.
const DefaultBufferSize = 64

// NewBus creates a Bus. size <= 0 uses DefaultBufferSize.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{events: NewRingChannel[Event](size)}
}

// Events returns the event stream.
func (b *Bus) Events() <-chan Event { return b.events.C() }

func (b *Bus) Info(msg string) {
	b.mu.Lock()
	b.info = msg
	ev := Event{Kind: KindInfo, Message: msg, Progress: b.progress}
	b.mu.Unlock()
	b.events.ForceSend(ev)
}

func (b *Bus) Error(msg string) {
	b.mu.Lock()
	b.err = msg
	ev := Event{Kind: KindError, Message: msg, Progress: b.progress}
	b.mu.Unlock()
	b.events.ForceSend(ev)
}

// Clear resets both message slots without publishing.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.info, b.err = "", ""
	b.mu.Unlock()
}

func (b *Bus) SetScanning(on bool) {
	b.updateProgress(func(p *Progress) { p.Scanning = on })
}

func (b *Bus) SetConnecting(on bool) {
	b.updateProgress(func(p *Progress) { p.Connecting = on })
}

func (b *Bus) SetConnectingID(id string) {
	b.updateProgress(func(p *Progress) { p.ConnectingID = id })
}

func (b *Bus) updateProgress(fn func(*Progress)) {
	b.mu.Lock()
	prev := b.progress
	fn(&b.progress)
	changed := prev != b.progress
	ev := Event{Kind: KindProgress, Progress: b.progress}
	b.mu.Unlock()
	if changed {
		b.events.ForceSend(ev)
	}
}

// LastInfo returns the latest informational message.
func (b *Bus) LastInfo() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

// LastError returns the latest error message.
func (b *Bus) LastError() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// Progress returns the current flags.
func (b *Bus) Progress() Progress {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.progress
}

// Drain returns the buffered events without blocking.
func (b *Bus) Drain() []Event {
	var out []Event
	for {
		ev, ok := b.events.TryReceive()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// Stats reports how many events were published and how many of them were
// overwritten before a reader took them.
func (b *Bus) Stats() (written, dropped int64) {
	return b.events.Written(), b.events.Dropped()
}

// Discard is an Emitter that drops everything.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Info(string) {}
func (discard) Error(string) {}
func (discard) Clear() {}
func (discard) SetScanning(bool) {}
func (discard) SetConnecting(bool) {}
func (discard) SetConnectingID(string) {}
