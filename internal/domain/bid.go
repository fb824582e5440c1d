package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is an accepted bid. Bids are immutable and append-only; the ledger
// records one row per accepted bid and rejected bids leave no trace beyond
// the audit log.
type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	BidTime   time.Time       `json:"bid_time"`
	CreatedAt time.Time       `json:"created_at"`
}
