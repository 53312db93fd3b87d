package rfcomm

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddr(t *testing.T) {
	got, err := parseAddr("98:D3:31:F5:1A:2B")
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x2B, 0x1A, 0xF5, 0x31, 0xD3, 0x98}, got, "bytes MUST be reversed")

	for _, bad := range []string{"", "98:D3:31", "98:D3:31:F5:1A:ZZ", "98:D3:31:F5:1A:2B:00", "9:D3:31:F5:1A:2B"} {
		_, err := parseAddr(bad)
		assert.Error(t, err, "address %q", bad)
	}
}

func TestDevicePathRoundTrip(t *testing.T) {
	adapter := dbus.ObjectPath("/org/bluez/hci0")

	path := devicePath(adapter, "98:d3:31:f5:1a:2b")
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_98_D3_31_F5_1A_2B"), path)
	assert.Equal(t, "98:D3:31:F5:1A:2B", addrFromPath(adapter, path))
	assert.Empty(t, addrFromPath(adapter, "/org/bluez/hci1/dev_98_D3_31_F5_1A_2B"))
}
