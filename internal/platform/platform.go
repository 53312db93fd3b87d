// Package platform bundles the OS capabilities around the Bluetooth core:
// radio power, runtime permissions and the settings launcher.
package platform

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

// Platform groups the capabilities. Nil members behave as no-ops.
type Platform struct {
	Radio       peripheral.Radio
	Permissions peripheral.Permissions
	Settings    peripheral.Settings
}

// Permission groups requested before scanning or connecting. Location is
// only needed by older mobile platforms for discovery.
var (
	BluetoothPermissions = []peripheral.Permission{peripheral.PermissionScan, peripheral.PermissionConnect}
	LocationPermissions  = []peripheral.Permission{peripheral.PermissionCoarseLocation, peripheral.PermissionFineLocation}
)

// Preflight makes sure the radio is on and requests runtime permissions.
// Every failure is logged and ignored: a real block surfaces later as a
// failed listing or connect.
func (p *Platform) Preflight(ctx context.Context, logger *logrus.Logger) {
	if logger == nil {
		logger = logrus.New()
	}
	if p == nil {
		return
	}

	if p.Radio != nil {
		enabled, err := p.Radio.IsEnabled(ctx)
		if err != nil || !enabled {
			if err := p.Radio.Enable(ctx); err != nil {
				logger.WithError(err).Warn("Bluetooth enable failed")
			}
		}
	}

	if p.Permissions != nil {
		if err := p.Permissions.Request(ctx, BluetoothPermissions...); err != nil {
			logger.WithError(err).Warn("Bluetooth permissions not granted or unavailable")
		}
		if err := p.Permissions.Request(ctx, LocationPermissions...); err != nil {
			logger.WithError(err).Warn("Location permissions not granted")
		}
	}
}

// OpenBluetoothSettings is fire-and-forget.
func (p *Platform) OpenBluetoothSettings(ctx context.Context) {
	if p == nil || p.Settings == nil {
		return
	}
	_ = p.Settings.OpenBluetooth(ctx)
}

// OpenLocationSettings is fire-and-forget.
func (p *Platform) OpenLocationSettings(ctx context.Context) {
	if p == nil || p.Settings == nil {
		return
	}
	_ = p.Settings.OpenLocation(ctx)
}
