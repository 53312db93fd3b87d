package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/platform"
	"github.com/srg/relayctl/internal/transport/goble"
	"github.com/srg/relayctl/internal/transport/rfcomm"
	"github.com/srg/relayctl/pkg/config"
)

// stack is the transport plus the platform capabilities around it.
type stack struct {
	Transport peripheral.Transport
	Platform  *platform.Platform
	close     func() error
}

// Close releases the adapter handles held by the stack
func (s *stack) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// transportFactory builds the stack for cfg; tests replace it.
var transportFactory = newStack

func newStack(cfg *config.Config, logger *logrus.Logger) (*stack, error) {
	plat := &platform.Platform{
		Permissions: platform.DesktopPermissions{Logger: logger},
		Settings:    settingsFactory(cfg),
	}

	switch cfg.Transport {
	case config.TransportRFCOMM:
		bz, err := rfcomm.NewBlueZ(cfg.Adapter, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open BlueZ adapter %s: %w", cfg.Adapter, err)
		}
		plat.Radio = bz
		t := rfcomm.New(bz, logger, &rfcomm.Options{
			Channel:         uint8(cfg.RFCOMMChannel),
			DiscoveryWindow: cfg.DiscoveryTimeout,
			ConnectTimeout:  cfg.ConnectTimeout,
		})
		return &stack{Transport: t, Platform: plat, close: bz.Close}, nil

	case config.TransportBLE:
		t := goble.New(logger, &goble.Options{
			ScanWindow:     cfg.DiscoveryTimeout,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		return &stack{Transport: t, Platform: plat, close: t.Close}, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// settingsFactory builds the settings launcher; tests replace it.
var settingsFactory = func(cfg *config.Config) peripheral.Settings {
	return platform.NewCommandSettings(cfg.BluetoothSettingsCommand, cfg.LocationSettingsCommand)
}
