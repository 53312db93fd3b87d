package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/pkg/config"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// FastConfig returns the default configuration with settle intervals
// shrunk so tests do not sleep.
func FastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PostCommandSettle = 0
	cfg.PostTeardownSettle = 0
	cfg.PreConnectSettle = 0
	cfg.DiscoveryTimeout = 0
	return cfg
}
