package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

func TestSweepOnce_ReconcilesDueBatch(t *testing.T) {
	e := newEnv(t0)
	e.store.put(testAuction("a1", domain.AuctionStatusCreated, t0.Add(-time.Minute), t0.Add(time.Hour)))
	e.store.put(testAuction("a2", domain.AuctionStatusActive, t0.Add(-2*time.Hour), t0.Add(-time.Minute)))
	e.store.seedBid(domain.Bid{ID: "b1", AuctionID: "a2", BidderID: "alice", Amount: decimal.NewFromInt(110), BidTime: t0.Add(-time.Hour)})
	// Not due: starts in the future.
	e.store.put(testAuction("a3", domain.AuctionStatusCreated, t0.Add(time.Hour), t0.Add(2*time.Hour)))

	sw := NewSweeper(e.store, e.lifecycle, e.clock, testLogger(), time.Minute, 100)
	sw.sweepOnce(context.Background())

	a1, _ := e.store.GetByID(context.Background(), "a1")
	check.Equal(t, domain.AuctionStatusActive, a1.Status)

	a2, _ := e.store.GetByID(context.Background(), "a2")
	check.Equal(t, domain.AuctionStatusWinnerSelected, a2.Status)
	check.NotNil(t, a2.WinnerID)
	check.Equal(t, "alice", *a2.WinnerID)

	a3, _ := e.store.GetByID(context.Background(), "a3")
	check.Equal(t, domain.AuctionStatusCreated, a3.Status)
}

func TestSweepOnce_HonoursBatchLimit(t *testing.T) {
	e := newEnv(t0)
	e.store.put(testAuction("a1", domain.AuctionStatusCreated, t0.Add(-2*time.Minute), t0.Add(time.Hour)))
	e.store.put(testAuction("a2", domain.AuctionStatusCreated, t0.Add(-time.Minute), t0.Add(2*time.Hour)))

	sw := NewSweeper(e.store, e.lifecycle, e.clock, testLogger(), time.Minute, 1)
	sw.sweepOnce(context.Background())

	// Exactly one of the two was reconciled this sweep.
	activated := 0
	for _, id := range []string{"a1", "a2"} {
		a, _ := e.store.GetByID(context.Background(), id)
		if a.Status == domain.AuctionStatusActive {
			activated++
		}
	}
	check.Equal(t, 1, activated)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	e := newEnv(t0)
	sw := NewSweeper(e.store, e.lifecycle, e.clock, testLogger(), 10*time.Millisecond, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		check.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
