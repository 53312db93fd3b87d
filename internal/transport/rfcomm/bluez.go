package rfcomm

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

const (
	busName            = "org.bluez"
	adapterIface       = "org.bluez.Adapter1"
	deviceIface        = "org.bluez.Device1"
	propsIface         = "org.freedesktop.DBus.Properties"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
)

// BlueZ talks to bluetoothd over the system bus. It lists devices, runs
// classic discovery and controls adapter power.
type BlueZ struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath
	logger  *logrus.Logger
}

// NewBlueZ connects to the system bus and checks that bluetoothd is
// running. adapter is the controller name, e.g. "hci0".
func NewBlueZ(adapter string, logger *logrus.Logger) (*BlueZ, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !slices.Contains(names, busName) {
		conn.Close()
		return nil, fmt.Errorf("%s not found on system bus, is bluetooth.service running?", busName)
	}

	return &BlueZ{
		conn:    conn,
		adapter: dbus.ObjectPath("/org/bluez/" + adapter),
		logger:  logger,
	}, nil
}

// Close releases the bus connection
func (b *BlueZ) Close() error {
	return b.conn.Close()
}

func (b *BlueZ) objects(ctx context.Context) (managedObjects, error) {
	objects := make(managedObjects)
	obj := b.conn.Object(busName, "/")
	if err := obj.CallWithContext(ctx, objectManagerIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return objects, nil
}

// devices returns every device object BlueZ knows below the adapter.
func (b *BlueZ) devices(ctx context.Context) ([]deviceEntry, error) {
	objects, err := b.objects(ctx)
	if err != nil {
		return nil, err
	}
	return devicesOf(objects, b.adapter), nil
}

// discover runs a BR/EDR inquiry for window and returns what BlueZ saw.
// Cancelling ctx ends the inquiry early.
func (b *BlueZ) discover(ctx context.Context, window time.Duration) ([]deviceEntry, error) {
	adapter := b.conn.Object(busName, b.adapter)

	filter := map[string]interface{}{
		"Transport": "bredr",
	}
	if err := adapter.CallWithContext(ctx, adapterIface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		// older adapters reject filters; an unfiltered inquiry still works
		b.logger.WithError(err).Debug("Failed to set discovery filter")
	}

	if err := adapter.CallWithContext(ctx, adapterIface+".StartDiscovery", 0).Err; err != nil {
		return nil, fmt.Errorf("start discovery: %w", err)
	}
	b.logger.WithField("window", window).Debug("Discovery started")

	if window > 0 {
		t := time.NewTimer(window)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	// StopDiscovery must run even when ctx is done
	if err := adapter.Call(adapterIface+".StopDiscovery", 0).Err; err != nil {
		b.logger.WithError(err).Debug("Failed to stop discovery")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.devices(ctx)
}

// disconnectDevice drops the baseband link to addr.
func (b *BlueZ) disconnectDevice(ctx context.Context, addr string) error {
	obj := b.conn.Object(busName, devicePath(b.adapter, addr))
	return obj.CallWithContext(ctx, deviceIface+".Disconnect", 0).Err
}

// IsEnabled reports the adapter Powered property
func (b *BlueZ) IsEnabled(ctx context.Context) (bool, error) {
	var v dbus.Variant
	obj := b.conn.Object(busName, b.adapter)
	if err := obj.CallWithContext(ctx, propsIface+".Get", 0, adapterIface, "Powered").Store(&v); err != nil {
		return false, fmt.Errorf("get adapter power: %w", err)
	}
	on, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("adapter property Powered is %s, not bool", v.Signature())
	}
	return on, nil
}

// Enable powers the adapter on
func (b *BlueZ) Enable(ctx context.Context) error {
	obj := b.conn.Object(busName, b.adapter)
	if err := obj.CallWithContext(ctx, propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(true)).Err; err != nil {
		return fmt.Errorf("power on adapter: %w", err)
	}
	return nil
}

var _ peripheral.Radio = (*BlueZ)(nil)
