package notify

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// Emitter builds the per-user notification rows for auction events. It only
// constructs records; persistence happens inside the store transaction that
// applies the corresponding state change, so a notification exists exactly
// when its event happened.
type Emitter struct {
	clock domain.Clock
}

// NewEmitter creates an Emitter stamping records with the given clock.
func NewEmitter(clock domain.Clock) *Emitter {
	return &Emitter{clock: clock}
}

func (e *Emitter) record(userID, message string) domain.Notification {
	return domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		CreatedAt: e.clock.Now(),
	}
}

// BidPlaced builds the seller's notification for an accepted bid.
func (e *Emitter) BidPlaced(a domain.Auction, bidderID string, amount decimal.Decimal) domain.Notification {
	return e.record(a.SellerID, fmt.Sprintf(
		"New bid of %s placed on your auction %q by %s.",
		amount.String(), a.ProductName, bidderID,
	))
}

// AuctionWon builds the winner and seller notifications for a selected winner.
func (e *Emitter) AuctionWon(a domain.Auction, winnerID string, amount decimal.Decimal) []domain.Notification {
	return []domain.Notification{
		e.record(winnerID, fmt.Sprintf(
			"Congratulations! You won the auction %q with a bid of %s.",
			a.ProductName, amount.String(),
		)),
		e.record(a.SellerID, fmt.Sprintf(
			"Your auction %q ended. Winner: %s at %s.",
			a.ProductName, winnerID, amount.String(),
		)),
	}
}

// AuctionCancelled builds one notification per distinct bidder. Cancellation
// notifies only the bidders whose bids will not be settled; the seller
// initiated the dispute path and gets nothing.
func (e *Emitter) AuctionCancelled(a domain.Auction, bidders []string) []domain.Notification {
	out := make([]domain.Notification, 0, len(bidders))
	for _, bidder := range bidders {
		out = append(out, e.record(bidder, fmt.Sprintf(
			"The auction %q was cancelled by an administrator. Your bids will not be settled.",
			a.ProductName,
		)))
	}
	return out
}

// WinnerForced builds the winner and seller notifications for an
// administrative winner override.
func (e *Emitter) WinnerForced(a domain.Auction, winnerID string) []domain.Notification {
	return []domain.Notification{
		e.record(winnerID, fmt.Sprintf(
			"You have been declared the winner of the auction %q by an administrator.",
			a.ProductName,
		)),
		e.record(a.SellerID, fmt.Sprintf(
			"The winner of your auction %q was set to %s by an administrator.",
			a.ProductName, winnerID,
		)),
	}
}
