package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// BidStore reads the append-only bid ledger. Bids are only ever written
// through AuctionStore.RecordBid, inside the same transaction that raises the
// auction's highest bid.
type BidStore struct {
	pool *pgxpool.Pool
}

var _ domain.BidStore = (*BidStore)(nil)

// NewBidStore creates a new BidStore backed by the given client.
func NewBidStore(client *Client) *BidStore {
	return &BidStore{pool: client.Pool()}
}

const bidColumns = `id, auction_id, bidder_id, amount::text, bid_time, created_at`

func scanBid(row pgx.Row) (domain.Bid, error) {
	var (
		b      domain.Bid
		amount string
	)
	if err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.BidTime, &b.CreatedAt); err != nil {
		return domain.Bid{}, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Bid{}, fmt.Errorf("parse amount: %w", err)
	}
	return b, nil
}

// ListByAuction returns an auction's bids, highest first.
func (s *BidStore) ListByAuction(ctx context.Context, auctionID string, opts domain.ListOpts) ([]domain.Bid, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, bid_time ASC, id ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, auctionID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("bid store: list by auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("bid store: list by auction %s: %w", auctionID, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid store: list by auction %s: %w", auctionID, err)
	}
	return out, nil
}

// HighestBid returns the winning candidate: maximum amount, ties broken by
// earliest bid time then id.
func (s *BidStore) HighestBid(ctx context.Context, auctionID string) (domain.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, bid_time ASC, id ASC
		LIMIT 1`

	b, err := scanBid(s.pool.QueryRow(ctx, query, auctionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bid{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid store: highest bid for %s: %w", auctionID, err)
	}
	return b, nil
}

// DistinctBidders returns the distinct bidder ids for the auction.
func (s *BidStore) DistinctBidders(ctx context.Context, auctionID string) ([]string, error) {
	const query = `SELECT DISTINCT bidder_id FROM bids WHERE auction_id = $1`

	rows, err := s.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bid store: distinct bidders for %s: %w", auctionID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var bidder string
		if err := rows.Scan(&bidder); err != nil {
			return nil, fmt.Errorf("bid store: distinct bidders for %s: %w", auctionID, err)
		}
		out = append(out, bidder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid store: distinct bidders for %s: %w", auctionID, err)
	}
	return out, nil
}

// CountByAuction returns the number of bids placed on the auction.
func (s *BidStore) CountByAuction(ctx context.Context, auctionID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM bids WHERE auction_id = $1", auctionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("bid store: count for %s: %w", auctionID, err)
	}
	return count, nil
}
