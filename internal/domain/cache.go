package domain

import (
	"context"
	"time"
)

// AuctionCache is a short-lived read-side cache of auction rows. Writers
// invalidate after every mutation; a stale entry is bounded by the TTL.
type AuctionCache interface {
	Set(ctx context.Context, a Auction) error
	Get(ctx context.Context, id string) (Auction, error)
	Invalidate(ctx context.Context, id string) error
}

// LockManager provides per-auction advisory locks. The locks reduce
// compare-and-swap conflicts between concurrent reconciles; correctness never
// depends on holding one.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function. Returns ErrLockHeld when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter limits how often a keyed action may run.
type RateLimiter interface {
	// Allow reports whether one more request for key fits in the sliding
	// window, counting the request when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus carries ephemeral JSON events between services and the
// WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a channel of raw payloads for the given bus channel.
	// The returned channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
