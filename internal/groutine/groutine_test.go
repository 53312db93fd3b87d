package groutine_test

import (
	"context"
	"testing"
	"time"

	"github.com/srg/relayctl/internal/groutine"
	"github.com/stretchr/testify/assert"
)

func TestGo(t *testing.T) {
	names := make(chan string, 1)

	//nolint:staticcheck // nil parent context is part of the contract
	done := groutine.Go(nil, "worker-1", func(ctx context.Context) {
		names <- groutine.GetName(ctx)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
	assert.Equal(t, "worker-1", <-names)
}

func TestGetName_Missing(t *testing.T) {
	assert.Equal(t, "", groutine.GetName(context.Background()))
	//nolint:staticcheck // nil context is handled
	assert.Equal(t, "", groutine.GetName(nil))
}
