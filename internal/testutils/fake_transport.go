package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/srg/relayctl/internal/peripheral"
)

// Operation names recorded by FakeTransport
const (
	OpListPaired       = "list_paired"
	OpDiscoverUnpaired = "discover_unpaired"
	OpConnectSecure    = "connect_secure"
	OpConnectInsecure  = "connect_insecure"
	OpDisconnect       = "disconnect"
	OpWrite            = "write"
	OpClose            = "close"
)

// Call is one recorded transport interaction.
type Call struct {
	Op      string
	ID      string
	Payload string
}

// FakeTransport is a scriptable in-memory peripheral.Transport that
// records every call in order.
//
//	ft := testutils.NewFakeTransport().
//	    WithPaired(peripheral.RawRecord{Name: "HC-06", Address: "A1"}).
//	    FailMode(peripheral.Secure, errors.New("refused"))
type FakeTransport struct {
	mu sync.Mutex

	paired      []peripheral.RawRecord
	unpaired    []peripheral.RawRecord
	pairedErr   error
	unpairedErr error
	connectErr  map[peripheral.Mode]error
	writeErr    error
	writeErrAt  int
	closeErr    error
	disconnErr  error

	// ConnectHook, when set, runs inside every connect call before the
	// scripted result. Returning an error fails the attempt.
	ConnectHook func(ctx context.Context, id string, mode peripheral.Mode) error
	// ListHook, when set, runs at the start of both listings. Returning
	// an error fails the listing.
	ListHook func(ctx context.Context, source peripheral.FetchSource) error
	// IgnoreCancel makes connect succeed even when ctx is already done,
	// like a stack that cannot abort an in-flight dial.
	IgnoreCancel bool

	calls    []Call
	sessions []*FakeSession
	writes   int
}

// NewFakeTransport creates an empty FakeTransport
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{connectErr: make(map[peripheral.Mode]error)}
}

func (f *FakeTransport) WithPaired(raws ...peripheral.RawRecord) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paired = append(f.paired, raws...)
	return f
}

func (f *FakeTransport) WithUnpaired(raws ...peripheral.RawRecord) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpaired = append(f.unpaired, raws...)
	return f
}

func (f *FakeTransport) FailPaired(err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairedErr = err
	return f
}

func (f *FakeTransport) FailUnpaired(err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpairedErr = err
	return f
}

// FailMode makes every connect in mode fail with err (nil clears it).
func (f *FakeTransport) FailMode(mode peripheral.Mode, err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr[mode] = err
	return f
}

// FailWrites makes writes fail with err starting at the n-th write
// (1-based) across all sessions.
func (f *FakeTransport) FailWrites(n int, err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrAt = n
	f.writeErr = err
	return f
}

func (f *FakeTransport) FailClose(err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeErr = err
	return f
}

func (f *FakeTransport) FailDisconnect(err error) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnErr = err
	return f
}

func (f *FakeTransport) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *FakeTransport) ListPaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	f.record(Call{Op: OpListPaired})
	if f.ListHook != nil {
		if err := f.ListHook(ctx, peripheral.SourcePaired); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pairedErr != nil {
		return nil, f.pairedErr
	}
	return append([]peripheral.RawRecord(nil), f.paired...), nil
}

func (f *FakeTransport) DiscoverUnpaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	f.record(Call{Op: OpDiscoverUnpaired})
	if f.ListHook != nil {
		if err := f.ListHook(ctx, peripheral.SourceUnpaired); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unpairedErr != nil {
		return nil, f.unpairedErr
	}
	return append([]peripheral.RawRecord(nil), f.unpaired...), nil
}

func (f *FakeTransport) ConnectSecure(ctx context.Context, id string) (peripheral.Session, error) {
	return f.connect(ctx, id, peripheral.Secure, OpConnectSecure)
}

func (f *FakeTransport) ConnectInsecure(ctx context.Context, id string) (peripheral.Session, error) {
	return f.connect(ctx, id, peripheral.Insecure, OpConnectInsecure)
}

func (f *FakeTransport) connect(ctx context.Context, id string, mode peripheral.Mode, op string) (peripheral.Session, error) {
	f.record(Call{Op: op, ID: id})

	if f.ConnectHook != nil {
		if err := f.ConnectHook(ctx, id, mode); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil && !f.IgnoreCancel {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.connectErr[mode]; err != nil {
		return nil, err
	}
	s := &FakeSession{transport: f, ID: id, Mode: mode}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *FakeTransport) Disconnect(context.Context) error {
	f.record(Call{Op: OpDisconnect})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnErr
}

// Calls returns a copy of the recorded calls
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ops returns only the operation names of the recorded calls
func (f *FakeTransport) Ops() []string {
	calls := f.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// Writes returns the payloads written, in order
func (f *FakeTransport) Writes() []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == OpWrite {
			out = append(out, c.Payload)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps the script
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Sessions returns every session handed out
func (f *FakeTransport) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}

// FakeSession is the Session produced by FakeTransport.
type FakeSession struct {
	transport *FakeTransport
	ID        string
	Mode      peripheral.Mode

	mu     sync.Mutex
	closed bool
}

var errSessionClosed = errors.New("session closed")

func (s *FakeSession) Write(_ context.Context, payload []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	f := s.transport
	f.record(Call{Op: OpWrite, ID: s.ID, Payload: string(payload)})
	if closed {
		return errSessionClosed
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil && f.writeErrAt > 0 && f.writes >= f.writeErrAt {
		return fmt.Errorf("write %d: %w", f.writes, f.writeErr)
	}
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.transport.record(Call{Op: OpClose, ID: s.ID})
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	return s.transport.closeErr
}

// Closed reports whether Close was called
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
