package peripheral

import "context"

// Session is one established serial link. Close tears the link down and
// is safe to call more than once.
type Session interface {
	Write(ctx context.Context, payload []byte) error
	Close() error
}

// Transport is the serial Bluetooth capability the core drives. Every
// call may fail independently. Connect calls honor ctx cancellation:
// a cancelled attempt must not leave a live link behind.
type Transport interface {
	ListPaired(ctx context.Context) ([]RawRecord, error)
	DiscoverUnpaired(ctx context.Context) ([]RawRecord, error)
	ConnectSecure(ctx context.Context, id string) (Session, error)
	ConnectInsecure(ctx context.Context, id string) (Session, error)
	// Disconnect drops any link the transport still holds outside a Session.
	Disconnect(ctx context.Context) error
}

// Connect dispatches to the transport call for mode.
func Connect(ctx context.Context, t Transport, id string, mode Mode) (Session, error) {
	if mode == Insecure {
		return t.ConnectInsecure(ctx, id)
	}
	return t.ConnectSecure(ctx, id)
}

// Radio controls the local Bluetooth adapter power.
type Radio interface {
	IsEnabled(ctx context.Context) (bool, error)
	Enable(ctx context.Context) error
}

// Permission is a runtime permission the platform may gate scanning or
// connecting behind. Platform implementations map these to their own
// identifiers.
type Permission int

const (
	PermissionScan Permission = iota
	PermissionConnect
	PermissionCoarseLocation
	PermissionFineLocation
)

func (p Permission) String() string {
	switch p {
	case PermissionScan:
		return "bluetooth_scan"
	case PermissionConnect:
		return "bluetooth_connect"
	case PermissionCoarseLocation:
		return "coarse_location"
	case PermissionFineLocation:
		return "fine_location"
	default:
		return "unknown"
	}
}

// Permissions requests runtime permissions.
type Permissions interface {
	Request(ctx context.Context, perms ...Permission) error
}

// Settings opens system settings screens. Calls are fire-and-forget.
type Settings interface {
	OpenBluetooth(ctx context.Context) error
	OpenLocation(ctx context.Context) error
}
