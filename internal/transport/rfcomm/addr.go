package rfcomm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

// parseAddr converts "AA:BB:CC:DD:EE:FF" into the little-endian byte
// order the kernel expects in sockaddr_rc.
func parseAddr(addr string) ([6]byte, error) {
	var b [6]byte
	parts := strings.Split(strings.TrimSpace(addr), ":")
	if len(parts) != len(b) {
		return b, fmt.Errorf("invalid bluetooth address %q", addr)
	}
	for i, part := range parts {
		u, err := strconv.ParseUint(part, 16, 8)
		if err != nil || len(part) != 2 {
			return b, fmt.Errorf("invalid bluetooth address %q", addr)
		}
		b[len(b)-1-i] = byte(u)
	}
	return b, nil
}

// devicePath converts a MAC address to its BlueZ object path under adapter.
func devicePath(adapter dbus.ObjectPath, addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(string(adapter) + "/dev_" + escaped)
}

// addrFromPath extracts the MAC address from a BlueZ device object path.
func addrFromPath(adapter dbus.ObjectPath, path dbus.ObjectPath) string {
	prefix := string(adapter) + "/dev_"
	s := string(path)
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	return strings.ReplaceAll(s[len(prefix):], "_", ":")
}
