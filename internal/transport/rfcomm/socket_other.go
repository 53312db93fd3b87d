//go:build !linux

package rfcomm

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/srg/relayctl/internal/peripheral"
)

func dialSession(context.Context, string, uint8, bool, *logrus.Logger) (peripheral.Session, error) {
	return nil, fmt.Errorf("rfcomm sockets on %s: %w", runtime.GOOS, peripheral.ErrUnsupported)
}
