package rfcomm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInbox(t *testing.T) {
	t.Run("keeps bytes in order", func(t *testing.T) {
		in := newInbox(16)
		in.push([]byte("OK\r\n"))
		in.push([]byte("OK\r\n"))

		assert.Equal(t, []byte("OK\r\nOK\r\n"), in.take())
		assert.Nil(t, in.take(), "take MUST drain")
		assert.EqualValues(t, 8, in.received.Load())
		assert.Zero(t, in.dropped.Load())
	})

	t.Run("drops oldest when full", func(t *testing.T) {
		in := newInbox(8)
		in.push([]byte("abcdef"))
		in.push([]byte("ghij"))

		assert.Equal(t, []byte("cdefghij"), in.take())
		assert.EqualValues(t, 2, in.dropped.Load())
	})

	t.Run("oversized chunk keeps its tail", func(t *testing.T) {
		in := newInbox(4)
		in.push([]byte("0123456789"))

		assert.Equal(t, []byte("6789"), in.take())
		assert.EqualValues(t, 6, in.dropped.Load())
	})

	t.Run("default capacity", func(t *testing.T) {
		in := newInbox(0)
		assert.Equal(t, defaultInboxSize, in.buf.Capacity())
	})
}
