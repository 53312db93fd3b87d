package rfcomm

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"
)

const defaultInboxSize = 512

// inbox keeps the newest bytes received from the module, dropping the
// oldest when full. Relay firmware answers commands with status text
// that nothing consumes; reading it keeps the socket receive queue from
// stalling the link.
type inbox struct {
	mu  sync.Mutex
	buf *ringbuffer.RingBuffer

	received atomic.Uint64
	dropped  atomic.Uint64
}

func newInbox(capacity int) *inbox {
	if capacity <= 0 {
		capacity = defaultInboxSize
	}
	return &inbox{buf: ringbuffer.New(capacity)}
}

func (in *inbox) push(p []byte) {
	if len(p) == 0 {
		return
	}
	in.received.Add(uint64(len(p)))

	in.mu.Lock()
	defer in.mu.Unlock()

	capacity := in.buf.Capacity()
	if len(p) > capacity {
		in.dropped.Add(uint64(len(p) - capacity))
		p = p[len(p)-capacity:]
	}
	if need := len(p) - in.buf.Free(); need > 0 {
		discard := make([]byte, need)
		n, _ := in.buf.TryRead(discard)
		in.dropped.Add(uint64(n))
	}
	if _, err := in.buf.Write(p); err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		in.dropped.Add(uint64(len(p)))
	}
}

// take drains and returns everything buffered.
func (in *inbox) take() []byte {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.buf.IsEmpty() {
		return nil
	}
	out := make([]byte, in.buf.Length())
	n, err := in.buf.TryRead(out)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return nil
	}
	return out[:n]
}
