package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/auctionhouse/internal/domain"
	"github.com/mwhitfield/auctionhouse/internal/metrics"
	"github.com/mwhitfield/auctionhouse/internal/notify"
)

// Dispute actions accepted by Resolve.
const (
	DisputeActionCancel      = "cancel"
	DisputeActionExtend      = "extend"
	DisputeActionForceWinner = "force_winner"
)

// defaultExtension is applied when an extend dispute carries no duration.
const defaultExtension = time.Hour

// DisputeService applies administrative overrides to auctions: cancelling
// them outright, extending their bidding window, or forcing a winner. These
// are the only paths that may move an auction against the normal lifecycle
// direction.
type DisputeService struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	emitter  *notify.Emitter
	cache    domain.AuctionCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	metrics  *metrics.Collector
	notifier *notify.Notifier
	clock    domain.Clock
	logger   *slog.Logger
}

// NewDisputeService creates a DisputeService with all required dependencies.
// notifier may be nil when operational alerting is disabled.
func NewDisputeService(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	emitter *notify.Emitter,
	cache domain.AuctionCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	collector *metrics.Collector,
	notifier *notify.Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *DisputeService {
	return &DisputeService{
		auctions: auctions,
		bids:     bids,
		emitter:  emitter,
		cache:    cache,
		bus:      bus,
		audit:    audit,
		metrics:  collector,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With(slog.String("component", "disputes")),
	}
}

// Resolve applies a dispute action to an auction and returns the resulting
// snapshot.
//
// "cancel" ends the auction terminally: it can never gain a winner afterwards
// and every distinct bidder is notified. "extend" pushes the
// end time out by extendBy (one hour when zero) and reopens bidding, clearing
// any winner. "force_winner" declares winnerID the winner regardless of the
// current state; it requires a non-empty winnerID. The alias "forceWinner" is
// accepted for the latter. Unknown actions return ErrInvalidDispute.
func (s *DisputeService) Resolve(ctx context.Context, id, action, winnerID string, extendBy time.Duration) (domain.AuctionSnapshot, error) {
	if action == "forceWinner" {
		action = DisputeActionForceWinner
	}

	a, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("disputes: get auction %q: %w", id, err)
	}

	detail := map[string]any{"auction_id": id, "action": action}

	switch action {
	case DisputeActionCancel:
		bidders, err := s.bids.DistinctBidders(ctx, id)
		if err != nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("disputes: distinct bidders for %q: %w", id, err)
		}
		notifs := s.emitter.AuctionCancelled(a, bidders)
		if err := s.auctions.CancelAuction(ctx, id, s.clock.Now(), notifs); err != nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("disputes: cancel %q: %w", id, err)
		}
		s.metrics.NotificationsWritten(len(notifs))
		detail["bidders_notified"] = len(bidders)

	case DisputeActionExtend:
		if extendBy <= 0 {
			extendBy = defaultExtension
		}
		newEnd := a.EndTime.Add(extendBy)
		if now := s.clock.Now(); newEnd.Before(now) {
			newEnd = now.Add(extendBy)
		}
		if err := s.auctions.ExtendAuction(ctx, id, newEnd); err != nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("disputes: extend %q: %w", id, err)
		}
		detail["new_end_time"] = newEnd

	case DisputeActionForceWinner:
		if winnerID == "" {
			return domain.AuctionSnapshot{}, fmt.Errorf("disputes: %w: force_winner requires a winner id", domain.ErrInvalidDispute)
		}
		notifs := s.emitter.WinnerForced(a, winnerID)
		if err := s.auctions.ForceWinner(ctx, id, winnerID, notifs); err != nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("disputes: force winner on %q: %w", id, err)
		}
		s.metrics.NotificationsWritten(len(notifs))
		detail["winner_id"] = winnerID

	default:
		return domain.AuctionSnapshot{}, fmt.Errorf("disputes: %w: %q", domain.ErrInvalidDispute, action)
	}

	s.metrics.DisputeResolved(action)

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]string{
		"event":      "dispute_resolved",
		"auction_id": id,
		"action":     action,
	})
	if err := s.bus.Publish(ctx, "auctions", evt); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "dispute_resolved", detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		title := fmt.Sprintf("Dispute resolved: %s", action)
		msg := fmt.Sprintf("Auction %s (%s): %s applied by administrator.", a.ID, a.ProductName, action)
		if err := s.notifier.Notify(ctx, "dispute_resolved", title, msg); err != nil {
			s.logger.WarnContext(ctx, "ops alert failed",
				slog.String("auction_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "dispute resolved",
		slog.String("auction_id", id),
		slog.String("action", action),
	)

	final, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("disputes: reread auction %q: %w", id, err)
	}
	return final.Snapshot(), nil
}
