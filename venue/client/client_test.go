package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpdash/perpdash/internal/ports"
	"github.com/perpdash/perpdash/pkg/cache"
	"github.com/perpdash/perpdash/pkg/ratelimit"
)

func newTestClient() *Client {
	return &Client{
		meta:    cache.NewMarketMetaCache(),
		limiter: ratelimit.NewTokenBucket(20, 10),
		wsDone:  make(chan struct{}),
	}
}

func TestCloseReleasesFeedAfterRevocation(t *testing.T) {
	c := newTestClient()
	// The gateway revoked the session (ws event or 401) before Close.
	c.closed.Store(true)

	require.NoError(t, c.Close())

	select {
	case <-c.wsDone:
	default:
		t.Fatal("wsDone must be closed so the feed waiter can exit")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestClient()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.closed.Load())
}

func TestAcquireFailsFastOnClosedSession(t *testing.T) {
	c := newTestClient()
	require.NoError(t, c.Close())

	err := c.acquire(context.Background())
	assert.ErrorIs(t, err, ports.ErrSessionClosed)
}
