package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
	"github.com/mwhitfield/auctionhouse/internal/metrics"
	"github.com/mwhitfield/auctionhouse/internal/notify"
)

// Reconciler brings a single auction's state in line with the clock. It is
// satisfied by LifecycleService.
type Reconciler interface {
	Reconcile(ctx context.Context, id string) (domain.AuctionSnapshot, error)
}

// defaultBidRetries bounds the optimistic retry loop in PlaceBid.
const defaultBidRetries = 3

// BidService accepts bids into the ledger. Acceptance is a single
// compare-and-swap in the store: the bid lands iff the auction is still
// active and the amount is strictly greater than the stored highest bid at
// commit time, so two racing bids can never both win the same price level.
type BidService struct {
	auctions   domain.AuctionStore
	bids       domain.BidStore
	emitter    *notify.Emitter
	limiter    domain.RateLimiter
	reconciler Reconciler
	cache      domain.AuctionCache
	bus        domain.SignalBus
	audit      domain.AuditStore
	metrics    *metrics.Collector
	clock      domain.Clock
	logger     *slog.Logger

	rateLimit  int
	rateWindow time.Duration
	maxRetries int
}

// NewBidService creates a BidService with all required dependencies.
// rateLimit of zero disables per-bidder rate limiting.
func NewBidService(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	emitter *notify.Emitter,
	limiter domain.RateLimiter,
	reconciler Reconciler,
	cache domain.AuctionCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	collector *metrics.Collector,
	clock domain.Clock,
	logger *slog.Logger,
	rateLimit int,
	rateWindow time.Duration,
	maxRetries int,
) *BidService {
	if maxRetries <= 0 {
		maxRetries = defaultBidRetries
	}
	return &BidService{
		auctions:   auctions,
		bids:       bids,
		emitter:    emitter,
		limiter:    limiter,
		reconciler: reconciler,
		cache:      cache,
		bus:        bus,
		audit:      audit,
		metrics:    collector,
		clock:      clock,
		logger:     logger.With(slog.String("component", "bids")),
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		maxRetries: maxRetries,
	}
}

// PlaceBid validates and records a bid. The auction is reconciled first so a
// bid against a stale "active" state is judged against the real lifecycle
// position. An accepted bid raises the highest bid, appends to the ledger and
// notifies the seller atomically; equal amounts lose to the incumbent.
func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error) {
	if !amount.IsPositive() {
		s.metrics.BidRejected("invalid_amount")
		return domain.Bid{}, domain.ErrInvalidAmount
	}
	if bidderID == "" {
		s.metrics.BidRejected("invalid_bidder")
		return domain.Bid{}, fmt.Errorf("bids: %w: empty bidder id", domain.ErrInvalidInput)
	}

	if s.rateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "bids:"+bidderID, s.rateLimit, s.rateWindow)
		if err != nil {
			return domain.Bid{}, fmt.Errorf("bids: rate limiter: %w", err)
		}
		if !allowed {
			s.metrics.BidRejected("rate_limited")
			return domain.Bid{}, domain.ErrRateLimited
		}
	}

	if _, err := s.reconciler.Reconcile(ctx, auctionID); err != nil {
		return domain.Bid{}, err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		a, err := s.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return domain.Bid{}, fmt.Errorf("bids: get auction %q: %w", auctionID, err)
		}

		if a.Status != domain.AuctionStatusActive {
			s.metrics.BidRejected("not_active")
			return domain.Bid{}, domain.ErrAuctionNotActive
		}
		if amount.LessThanOrEqual(a.CurrentHighestBid) {
			s.metrics.BidRejected("too_low")
			return domain.Bid{}, domain.ErrBidTooLow
		}

		now := s.clock.Now()
		bid := domain.Bid{
			ID:        uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			BidTime:   now,
			CreatedAt: now,
		}

		applied, err := s.auctions.RecordBid(ctx, bid, s.emitter.BidPlaced(a, bidderID, amount))
		if err != nil {
			return domain.Bid{}, fmt.Errorf("bids: record bid: %w", err)
		}
		if applied {
			s.accepted(ctx, a, bid)
			return bid, nil
		}

		// The guard failed between our read and the update: either another
		// bid raised the bar, or the auction left active. Loop to re-read and
		// classify against fresh state.
		s.logger.DebugContext(ctx, "bid lost race, retrying",
			slog.String("auction_id", auctionID),
			slog.String("bidder_id", bidderID),
			slog.Int("attempt", attempt+1),
		)
	}

	s.metrics.BidRejected("conflict")
	return domain.Bid{}, domain.ErrConflict
}

func (s *BidService) accepted(ctx context.Context, a domain.Auction, bid domain.Bid) {
	s.metrics.BidAccepted()
	s.metrics.NotificationsWritten(1)

	if err := s.cache.Invalidate(ctx, a.ID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]string{
		"event":      "bid_placed",
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
	if err := s.bus.Publish(ctx, "bids", evt); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("auction_id", bid.AuctionID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "bid_placed", map[string]any{
		"auction_id": bid.AuctionID,
		"bid_id":     bid.ID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("auction_id", bid.AuctionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "bid accepted",
		slog.String("auction_id", bid.AuctionID),
		slog.String("bidder_id", bid.BidderID),
		slog.String("amount", bid.Amount.String()),
	)
}

// HighestBid returns the current winning candidate for an auction after
// reconciling it. It returns domain.ErrNotFound when no bids exist.
func (s *BidService) HighestBid(ctx context.Context, auctionID string) (domain.Bid, error) {
	if _, err := s.reconciler.Reconcile(ctx, auctionID); err != nil {
		return domain.Bid{}, err
	}

	top, err := s.bids.HighestBid(ctx, auctionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Bid{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bids: highest bid for %q: %w", auctionID, err)
	}
	return top, nil
}

// ListByAuction returns an auction's bids, highest first.
func (s *BidService) ListByAuction(ctx context.Context, auctionID string, opts domain.ListOpts) ([]domain.Bid, error) {
	if _, err := s.auctions.GetByID(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("bids: get auction %q: %w", auctionID, err)
	}
	out, err := s.bids.ListByAuction(ctx, auctionID, opts)
	if err != nil {
		return nil, fmt.Errorf("bids: list for %q: %w", auctionID, err)
	}
	return out, nil
}
