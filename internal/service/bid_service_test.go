package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
	"github.com/mwhitfield/auctionhouse/internal/metrics"
	"github.com/mwhitfield/auctionhouse/internal/notify"
)

func activeAuction(e *env, id string) domain.Auction {
	a := testAuction(id, domain.AuctionStatusActive, e.clock.Now().Add(-time.Hour), e.clock.Now().Add(time.Hour))
	e.store.put(a)
	return a
}

func TestPlaceBid_Accepted(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	bid, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))

	check.NoError(t, err)
	check.Equal(t, "a1", bid.AuctionID)
	check.Equal(t, "alice", bid.BidderID)
	check.True(t, bid.Amount.Equal(decimal.NewFromInt(150)))
	check.Equal(t, t0, bid.BidTime)

	a, err := e.store.GetByID(context.Background(), "a1")
	check.NoError(t, err)
	check.True(t, a.CurrentHighestBid.Equal(decimal.NewFromInt(150)))

	// Seller notified once; bid event published on the bids channel.
	check.Equal(t, 1, len(e.store.notificationsFor("seller-1")))
	check.Equal(t, 1, len(e.bus.published("bids")))
	check.Equal(t, 1, e.audit.eventsNamed("bid_placed"))
}

func TestPlaceBid_EqualAmountRejected(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))
	check.NoError(t, err)

	// Equal to the incumbent loses; only strictly greater wins.
	_, err = svc.PlaceBid(context.Background(), "a1", "bob", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrBidTooLow))

	a, _ := e.store.GetByID(context.Background(), "a1")
	check.True(t, a.CurrentHighestBid.Equal(decimal.NewFromInt(150)))
	n, _ := e.store.CountByAuction(context.Background(), "a1")
	check.Equal(t, int64(1), n)
}

func TestPlaceBid_AtBasePriceRejected(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	// The highest bid starts at the base price, so a bid equal to it loses.
	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(100))
	check.True(t, errors.Is(err, domain.ErrBidTooLow))
}

func TestPlaceBid_InvalidAmount(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.Zero)
	check.True(t, errors.Is(err, domain.ErrInvalidAmount))

	_, err = svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(-5))
	check.True(t, errors.Is(err, domain.ErrInvalidAmount))
}

func TestPlaceBid_EmptyBidder(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "a1", "", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	e := newEnv(t0)
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "missing", "alice", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

func TestPlaceBid_NotYetStarted(t *testing.T) {
	e := newEnv(t0)
	e.store.put(testAuction("a1", domain.AuctionStatusCreated, t0.Add(time.Hour), t0.Add(2*time.Hour)))
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrAuctionNotActive))
}

func TestPlaceBid_AfterEndRejected(t *testing.T) {
	e := newEnv(t0)
	// Stored as active, but the end time has passed. The pre-bid reconcile
	// must close it before the bid is judged.
	e.store.put(testAuction("a1", domain.AuctionStatusActive, t0.Add(-2*time.Hour), t0.Add(-time.Minute)))
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrAuctionNotActive))

	a, _ := e.store.GetByID(context.Background(), "a1")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
}

func TestPlaceBid_RateLimited(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	limiter := &fakeLimiter{allow: false}
	svc := e.bidService(5, limiter)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrRateLimited))
	check.Equal(t, 1, limiter.calls)
}

// conflictStore wraps the fake store and fails every RecordBid without
// applying, simulating a guard that always loses the race.
type conflictStore struct {
	*fakeStore
	mu    sync.Mutex
	calls int
}

func (c *conflictStore) RecordBid(_ context.Context, _ domain.Bid, _ domain.Notification) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return false, nil
}

func TestPlaceBid_ConflictAfterRetriesExhausted(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	cs := &conflictStore{fakeStore: e.store}

	svc := NewBidService(
		cs, e.store, notify.NewEmitter(e.clock),
		&fakeLimiter{allow: true}, e.lifecycle, e.cache, e.bus, e.audit,
		metrics.NewCollector(), e.clock, testLogger(),
		0, time.Second, 3,
	)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))
	check.True(t, errors.Is(err, domain.ErrConflict))
	check.Equal(t, 3, cs.calls)
}

func TestPlaceBid_ConcurrentBidsKeepHighestMonotonic(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			// Losers get ErrBidTooLow or ErrConflict; both are fine here.
			_, _ = svc.PlaceBid(context.Background(), "a1", "bidder", decimal.NewFromInt(amount))
		}(int64(100 + i))
	}
	wg.Wait()

	a, err := e.store.GetByID(context.Background(), "a1")
	check.NoError(t, err)
	check.True(t, a.CurrentHighestBid.Equal(decimal.NewFromInt(120)))

	// Every accepted bid raised the bar: the ledger amounts are strictly
	// increasing in insertion order.
	bids, err := e.store.ListByAuction(context.Background(), "a1", domain.ListOpts{})
	check.NoError(t, err)
	check.True(t, len(bids) >= 1)
	top, err := e.store.HighestBid(context.Background(), "a1")
	check.NoError(t, err)
	check.True(t, top.Amount.Equal(decimal.NewFromInt(120)))
}

func TestHighestBid_NoBids(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	_, err := svc.HighestBid(context.Background(), "a1")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestHighestBid_ReturnsWinningCandidate(t *testing.T) {
	e := newEnv(t0)
	activeAuction(e, "a1")
	svc := e.bidService(0, nil)

	_, err := svc.PlaceBid(context.Background(), "a1", "alice", decimal.NewFromInt(150))
	check.NoError(t, err)
	_, err = svc.PlaceBid(context.Background(), "a1", "bob", decimal.NewFromInt(175))
	check.NoError(t, err)

	top, err := svc.HighestBid(context.Background(), "a1")
	check.NoError(t, err)
	check.Equal(t, "bob", top.BidderID)
	check.True(t, top.Amount.Equal(decimal.NewFromInt(175)))
}

func TestListByAuction_UnknownAuction(t *testing.T) {
	e := newEnv(t0)
	svc := e.bidService(0, nil)

	_, err := svc.ListByAuction(context.Background(), "missing", domain.ListOpts{})
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}
