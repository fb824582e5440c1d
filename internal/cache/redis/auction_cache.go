package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// auctionTTL is deliberately short: the cache only has to absorb read bursts
// between mutations, and every write path invalidates explicitly.
const auctionTTL = 30 * time.Second

// AuctionCache implements domain.AuctionCache using Redis hashes with
// JSON-serialized auction data.
//
// Key schema:
//
//	auction:{id} - hash with field "data" containing JSON
type AuctionCache struct {
	rdb *redis.Client
}

// NewAuctionCache creates an AuctionCache backed by the given Client.
func NewAuctionCache(c *Client) *AuctionCache {
	return &AuctionCache{rdb: c.Underlying()}
}

func auctionKey(id string) string { return "auction:" + id }

// Set stores an auction in the cache with a short TTL.
func (ac *AuctionCache) Set(ctx context.Context, a domain.Auction) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redis: marshal auction %s: %w", a.ID, err)
	}

	key := auctionKey(a.ID)

	pipe := ac.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, auctionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set auction %s: %w", a.ID, err)
	}
	return nil
}

// Get retrieves an auction by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (ac *AuctionCache) Get(ctx context.Context, id string) (domain.Auction, error) {
	data, err := ac.rdb.HGet(ctx, auctionKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("redis: get auction %s: %w", id, err)
	}

	var a domain.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Auction{}, fmt.Errorf("redis: unmarshal auction %s: %w", id, err)
	}
	return a, nil
}

// Invalidate removes an auction from the cache.
func (ac *AuctionCache) Invalidate(ctx context.Context, id string) error {
	if err := ac.rdb.Del(ctx, auctionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate auction %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AuctionCache = (*AuctionCache)(nil)
