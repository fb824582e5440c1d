package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// ImagePutter uploads auction images to blob storage and returns the public
// URL. It is satisfied by the S3 image writer.
type ImagePutter interface {
	UploadAuctionImage(ctx context.Context, auctionID, filename string, data []byte) (string, error)
}

// reconcileListLimit caps how many due auctions a list call reconciles
// inline before querying.
const reconcileListLimit = 50

// AuctionService covers the auction CRUD and read paths. Reads go through
// the reconciler so callers never observe an auction that the clock has
// already moved past its stored state.
type AuctionService struct {
	auctions   domain.AuctionStore
	bids       domain.BidStore
	cache      domain.AuctionCache
	reconciler Reconciler
	images     ImagePutter
	clock      domain.Clock
	logger     *slog.Logger
}

// NewAuctionService creates an AuctionService. images may be nil when blob
// storage is not configured.
func NewAuctionService(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	cache domain.AuctionCache,
	reconciler Reconciler,
	images ImagePutter,
	clock domain.Clock,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		auctions:   auctions,
		bids:       bids,
		cache:      cache,
		reconciler: reconciler,
		images:     images,
		clock:      clock,
		logger:     logger.With(slog.String("component", "auctions")),
	}
}

// Create validates and persists a new auction in the created state. The
// highest bid starts at the base price, so the first acceptable bid must
// exceed it.
func (s *AuctionService) Create(ctx context.Context, a domain.Auction) (domain.AuctionSnapshot, error) {
	if strings.TrimSpace(a.ProductName) == "" {
		return domain.AuctionSnapshot{}, fmt.Errorf("auctions: %w: empty product name", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(a.SellerID) == "" {
		return domain.AuctionSnapshot{}, fmt.Errorf("auctions: %w: empty seller id", domain.ErrInvalidInput)
	}
	if !a.BasePrice.IsPositive() {
		return domain.AuctionSnapshot{}, fmt.Errorf("auctions: %w: base price must be positive", domain.ErrInvalidInput)
	}
	if !a.EndTime.After(a.StartTime) {
		return domain.AuctionSnapshot{}, fmt.Errorf("auctions: %w: end time must be after start time", domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	a.ID = uuid.New().String()
	a.Status = domain.AuctionStatusCreated
	a.CurrentHighestBid = a.BasePrice
	a.WinnerID = nil
	a.CancelledAt = nil
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := s.auctions.Create(ctx, a); err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("auctions: create: %w", err)
	}

	s.logger.InfoContext(ctx, "auction created",
		slog.String("auction_id", a.ID),
		slog.String("product", a.ProductName),
		slog.String("seller_id", a.SellerID),
	)

	// A start time in the past activates immediately.
	return s.reconciler.Reconcile(ctx, a.ID)
}

// Get returns a reconciled snapshot of a single auction. A cache hit that is
// not due for a transition is served directly.
func (s *AuctionService) Get(ctx context.Context, id string) (domain.AuctionSnapshot, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil && !cached.DueForTransition(s.clock.Now()) {
		return cached.Snapshot(), nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "cache read failed",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	snap, err := s.reconciler.Reconcile(ctx, id)
	if err != nil {
		return domain.AuctionSnapshot{}, err
	}

	if a, err := s.auctions.GetByID(ctx, id); err == nil {
		if err := s.cache.Set(ctx, a); err != nil {
			s.logger.WarnContext(ctx, "cache write failed",
				slog.String("auction_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return snap, nil
}

// List returns auctions newest first, reconciling any with pending
// transitions so the returned statuses are current.
func (s *AuctionService) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionSnapshot, error) {
	s.reconcileDue(ctx)
	auctions, err := s.auctions.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("auctions: list: %w", err)
	}
	return snapshots(auctions), nil
}

// ListActive returns currently biddable auctions.
func (s *AuctionService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionSnapshot, error) {
	s.reconcileDue(ctx)
	auctions, err := s.auctions.ListByStatus(ctx, []domain.AuctionStatus{domain.AuctionStatusActive}, opts)
	if err != nil {
		return nil, fmt.Errorf("auctions: list active: %w", err)
	}
	return snapshots(auctions), nil
}

// ListPast returns finished auctions, with and without winners.
func (s *AuctionService) ListPast(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionSnapshot, error) {
	s.reconcileDue(ctx)
	auctions, err := s.auctions.ListByStatus(ctx, []domain.AuctionStatus{
		domain.AuctionStatusEnded,
		domain.AuctionStatusWinnerSelected,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("auctions: list past: %w", err)
	}
	return snapshots(auctions), nil
}

// reconcileDue walks auctions with pending transitions so list results
// reflect the clock. Failures are logged and skipped; a missed auction is
// picked up by the sweeper.
func (s *AuctionService) reconcileDue(ctx context.Context) {
	due, err := s.auctions.ListDue(ctx, s.clock.Now(), reconcileListLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "list due failed", slog.String("error", err.Error()))
		return
	}
	for _, a := range due {
		if _, err := s.reconciler.Reconcile(ctx, a.ID); err != nil {
			s.logger.WarnContext(ctx, "inline reconcile failed",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// AttachImage uploads an image for the auction and stores its public URL.
func (s *AuctionService) AttachImage(ctx context.Context, id, filename string, data []byte) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("auctions: attach image: %w", domain.ErrStorageDisabled)
	}
	if _, err := s.auctions.GetByID(ctx, id); err != nil {
		return "", fmt.Errorf("auctions: get auction %q: %w", id, err)
	}

	url, err := s.images.UploadAuctionImage(ctx, id, filename, data)
	if err != nil {
		return "", fmt.Errorf("auctions: upload image for %q: %w", id, err)
	}
	if err := s.auctions.SetImageURL(ctx, id, url); err != nil {
		return "", fmt.Errorf("auctions: set image url for %q: %w", id, err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "image attached",
		slog.String("auction_id", id),
		slog.String("url", url),
	)
	return url, nil
}

func snapshots(auctions []domain.Auction) []domain.AuctionSnapshot {
	out := make([]domain.AuctionSnapshot, len(auctions))
	for i, a := range auctions {
		out[i] = a.Snapshot()
	}
	return out
}
