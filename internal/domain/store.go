package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuctionStore persists auctions and owns the per-auction atomic
// read-modify-write discipline. Every conditional mutator is a single
// compare-and-swap: it reports applied=false (with no side effects) when the
// guarded condition no longer holds, which is how concurrent reconciles and
// bids serialize without a global lock. Mutators that carry notifications
// write them in the same transaction as the state change, so a transition is
// announced exactly once no matter how often it is retried.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) error
	GetByID(ctx context.Context, id string) (Auction, error)
	List(ctx context.Context, opts ListOpts) ([]Auction, error)
	ListByStatus(ctx context.Context, statuses []AuctionStatus, opts ListOpts) ([]Auction, error)

	// ListDue returns auctions with a pending clock-driven transition at now:
	// created past start, active past end, or ended without winner/cancel mark.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Auction, error)

	// TransitionToActive applies created -> active if start_time <= now.
	TransitionToActive(ctx context.Context, id string, now time.Time) (applied bool, err error)

	// CloseAuction applies active -> ended if end_time <= now.
	CloseAuction(ctx context.Context, id string, now time.Time) (applied bool, err error)

	// SelectWinner applies ended -> winner_selected and sets the winner, but
	// only when no winner is set yet and the auction was not cancelled. The
	// notifications are inserted iff the transition is applied.
	SelectWinner(ctx context.Context, id, winnerID string, notifs []Notification) (applied bool, err error)

	// RecordBid raises current_highest_bid to the bid amount, appends the bid
	// and inserts the seller notification in one transaction. It applies only
	// while the auction is active and the amount is strictly greater than the
	// stored highest bid; otherwise nothing is written.
	RecordBid(ctx context.Context, bid Bid, notif Notification) (applied bool, err error)

	// CancelAuction forces ended regardless of current status and stamps the
	// cancellation, inserting the bidder notifications in the same transaction.
	CancelAuction(ctx context.Context, id string, now time.Time, notifs []Notification) error

	// ExtendAuction pushes end_time to newEnd and forces the auction active.
	ExtendAuction(ctx context.Context, id string, newEnd time.Time) error

	// ForceWinner sets the winner and status winner_selected unconditionally,
	// inserting the notifications in the same transaction.
	ForceWinner(ctx context.Context, id, winnerID string, notifs []Notification) error

	SetImageURL(ctx context.Context, id, imageURL string) error
}

// BidStore reads the append-only bid ledger.
type BidStore interface {
	ListByAuction(ctx context.Context, auctionID string, opts ListOpts) ([]Bid, error)

	// HighestBid returns the bid with the maximum amount for the auction,
	// ties broken by earliest bid time then id. Returns ErrNotFound when the
	// auction has no bids.
	HighestBid(ctx context.Context, auctionID string) (Bid, error)

	// DistinctBidders returns the distinct bidder ids that bid on the auction.
	DistinctBidders(ctx context.Context, auctionID string) ([]string, error)

	CountByAuction(ctx context.Context, auctionID string) (int64, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	Create(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Notification, error)

	// MarkRead flips is_read for the notification if it belongs to userID.
	MarkRead(ctx context.Context, id, userID string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
