package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus tracks the auction lifecycle.
type AuctionStatus string

const (
	AuctionStatusCreated        AuctionStatus = "created"
	AuctionStatusActive         AuctionStatus = "active"
	AuctionStatusEnded          AuctionStatus = "ended"
	AuctionStatusWinnerSelected AuctionStatus = "winner_selected"
)

// Auction represents a timed listing. Status, WinnerID and EndTime are owned
// by the lifecycle scheduler and the dispute resolver; CurrentHighestBid is
// owned by the bid ledger. Version is bumped on every mutation and backs the
// optimistic per-auction compare-and-swap in the store.
type Auction struct {
	ID                string
	ProductName       string
	Description       string
	ImageURL          string
	BasePrice         decimal.Decimal
	CurrentHighestBid decimal.Decimal
	StartTime         time.Time
	EndTime           time.Time
	Status            AuctionStatus
	SellerID          string
	WinnerID          *string
	// CancelledAt marks an administrative cancellation. A cancelled auction is
	// terminally ended: reconciliation must never select a winner for it.
	CancelledAt *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DueForTransition reports whether reconciling at now could change the
// auction's state: a created auction past its start, an active auction past
// its end, or a naturally-ended auction still missing its winner.
func (a Auction) DueForTransition(now time.Time) bool {
	switch a.Status {
	case AuctionStatusCreated:
		return !now.Before(a.StartTime)
	case AuctionStatusActive:
		return !now.Before(a.EndTime)
	case AuctionStatusEnded:
		return a.WinnerID == nil && a.CancelledAt == nil
	default:
		return false
	}
}

// Snapshot returns the externally visible view of the auction.
func (a Auction) Snapshot() AuctionSnapshot {
	return AuctionSnapshot{
		ID:                a.ID,
		ProductName:       a.ProductName,
		Description:       a.Description,
		ImageURL:          a.ImageURL,
		BasePrice:         a.BasePrice,
		CurrentHighestBid: a.CurrentHighestBid,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            a.Status,
		SellerID:          a.SellerID,
		WinnerID:          a.WinnerID,
	}
}

// AuctionSnapshot is the read model returned by reconcile and the HTTP layer.
type AuctionSnapshot struct {
	ID                string          `json:"id"`
	ProductName       string          `json:"product_name"`
	Description       string          `json:"description,omitempty"`
	ImageURL          string          `json:"image_url,omitempty"`
	BasePrice         decimal.Decimal `json:"base_price"`
	CurrentHighestBid decimal.Decimal `json:"current_highest_bid"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	Status            AuctionStatus   `json:"status"`
	SellerID          string          `json:"seller_id"`
	WinnerID          *string         `json:"winner_id,omitempty"`
}
