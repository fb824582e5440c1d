package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// AuctionStore implements domain.AuctionStore on PostgreSQL. All conditional
// mutators are single-statement guarded updates so the row version and the
// guard are checked under the same row lock.
type AuctionStore struct {
	pool *pgxpool.Pool
}

var _ domain.AuctionStore = (*AuctionStore)(nil)

// NewAuctionStore creates a new AuctionStore backed by the given client.
func NewAuctionStore(client *Client) *AuctionStore {
	return &AuctionStore{pool: client.Pool()}
}

const auctionColumns = `id, product_name, description, image_url,
	base_price::text, current_highest_bid::text, start_time, end_time,
	status, seller_id, winner_id, cancelled_at, version, created_at, updated_at`

func scanAuction(row pgx.Row) (domain.Auction, error) {
	var (
		a          domain.Auction
		basePrice  string
		highestBid string
		status     string
	)
	err := row.Scan(
		&a.ID, &a.ProductName, &a.Description, &a.ImageURL,
		&basePrice, &highestBid, &a.StartTime, &a.EndTime,
		&status, &a.SellerID, &a.WinnerID, &a.CancelledAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}

	a.Status = domain.AuctionStatus(status)
	if a.BasePrice, err = decimal.NewFromString(basePrice); err != nil {
		return domain.Auction{}, fmt.Errorf("parse base_price: %w", err)
	}
	if a.CurrentHighestBid, err = decimal.NewFromString(highestBid); err != nil {
		return domain.Auction{}, fmt.Errorf("parse current_highest_bid: %w", err)
	}
	return a, nil
}

func collectAuctions(rows pgx.Rows) ([]domain.Auction, error) {
	defer rows.Close()

	var out []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new auction.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	const query = `
		INSERT INTO auctions (id, product_name, description, image_url,
			base_price, current_highest_bid, start_time, end_time, status,
			seller_id, winner_id, cancelled_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.ProductName, a.Description, a.ImageURL,
		a.BasePrice.String(), a.CurrentHighestBid.String(),
		a.StartTime, a.EndTime, string(a.Status),
		a.SellerID, a.WinnerID, a.CancelledAt,
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("auction store: create: %w", err)
	}
	return nil
}

// GetByID fetches a single auction.
func (s *AuctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction store: get %s: %w", id, err)
	}
	return a, nil
}

// List returns auctions ordered newest first.
func (s *AuctionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	return s.ListByStatus(ctx, nil, opts)
}

// ListByStatus returns auctions in any of the given statuses, newest first.
// An empty status list matches everything.
func (s *AuctionStore) ListByStatus(ctx context.Context, statuses []domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(names)+")")
	}
	if opts.Since != nil {
		conds = append(conds, "created_at >= "+arg(*opts.Since))
	}
	if opts.Until != nil {
		conds = append(conds, "created_at <= "+arg(*opts.Until))
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("auction store: list: %w", err)
	}
	out, err := collectAuctions(rows)
	if err != nil {
		return nil, fmt.Errorf("auction store: list: %w", err)
	}
	return out, nil
}

// ListDue returns auctions with a pending clock-driven transition at now.
func (s *AuctionStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Auction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE (status = 'created' AND start_time <= $1)
		   OR (status = 'active' AND end_time <= $1)
		   OR (status = 'ended' AND winner_id IS NULL AND cancelled_at IS NULL
		       AND EXISTS (SELECT 1 FROM bids b WHERE b.auction_id = auctions.id))
		ORDER BY end_time ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("auction store: list due: %w", err)
	}
	out, err := collectAuctions(rows)
	if err != nil {
		return nil, fmt.Errorf("auction store: list due: %w", err)
	}
	return out, nil
}

// TransitionToActive applies created -> active if the start time has passed.
func (s *AuctionStore) TransitionToActive(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
		UPDATE auctions
		SET status = 'active', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'created' AND start_time <= $2`

	tag, err := s.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("auction store: transition to active %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// CloseAuction applies active -> ended if the end time has passed.
func (s *AuctionStore) CloseAuction(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
		UPDATE auctions
		SET status = 'ended', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND end_time <= $2`

	tag, err := s.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("auction store: close %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SelectWinner applies ended -> winner_selected once. The guard rejects
// auctions that already have a winner or were cancelled, so a crashed or
// concurrent reconcile can retry without double-selecting. Notifications ride
// in the same transaction and exist iff the transition applied.
func (s *AuctionStore) SelectWinner(ctx context.Context, id, winnerID string, notifs []domain.Notification) (bool, error) {
	const query = `
		UPDATE auctions
		SET status = 'winner_selected', winner_id = $2,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'ended'
			AND winner_id IS NULL AND cancelled_at IS NULL`

	var applied bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id, winnerID)
		if err != nil {
			return err
		}
		applied = tag.RowsAffected() == 1
		if !applied {
			return nil
		}
		return insertNotifications(ctx, tx, notifs)
	})
	if err != nil {
		return false, fmt.Errorf("auction store: select winner %s: %w", id, err)
	}
	return applied, nil
}

// RecordBid is the single compare-and-swap of the bid path: it raises the
// highest bid only while the auction is active and the amount is strictly
// greater, and the bid row and seller notification commit with it or not at
// all.
func (s *AuctionStore) RecordBid(ctx context.Context, bid domain.Bid, notif domain.Notification) (bool, error) {
	const query = `
		UPDATE auctions
		SET current_highest_bid = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND current_highest_bid < $2`

	var applied bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, bid.AuctionID, bid.Amount.String())
		if err != nil {
			return err
		}
		applied = tag.RowsAffected() == 1
		if !applied {
			return nil
		}

		const insertBid = `
			INSERT INTO bids (id, auction_id, bidder_id, amount, bid_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insertBid,
			bid.ID, bid.AuctionID, bid.BidderID,
			bid.Amount.String(), bid.BidTime, bid.CreatedAt,
		); err != nil {
			return err
		}
		return insertNotifications(ctx, tx, []domain.Notification{notif})
	})
	if err != nil {
		return false, fmt.Errorf("auction store: record bid on %s: %w", bid.AuctionID, err)
	}
	return applied, nil
}

// CancelAuction forces the auction ended and stamps the cancellation, which
// permanently blocks winner selection.
func (s *AuctionStore) CancelAuction(ctx context.Context, id string, now time.Time, notifs []domain.Notification) error {
	const query = `
		UPDATE auctions
		SET status = 'ended', cancelled_at = $2,
			version = version + 1, updated_at = NOW()
		WHERE id = $1`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAuctionNotFound
		}
		return insertNotifications(ctx, tx, notifs)
	})
	if errors.Is(err, domain.ErrAuctionNotFound) {
		return domain.ErrAuctionNotFound
	}
	if err != nil {
		return fmt.Errorf("auction store: cancel %s: %w", id, err)
	}
	return nil
}

// ExtendAuction pushes the end time out and reopens the auction for bidding.
func (s *AuctionStore) ExtendAuction(ctx context.Context, id string, newEnd time.Time) error {
	const query = `
		UPDATE auctions
		SET end_time = $2, status = 'active', winner_id = NULL,
			cancelled_at = NULL, version = version + 1, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, newEnd)
	if err != nil {
		return fmt.Errorf("auction store: extend %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

// ForceWinner overrides the winner regardless of current state.
func (s *AuctionStore) ForceWinner(ctx context.Context, id, winnerID string, notifs []domain.Notification) error {
	const query = `
		UPDATE auctions
		SET status = 'winner_selected', winner_id = $2,
			version = version + 1, updated_at = NOW()
		WHERE id = $1`

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id, winnerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAuctionNotFound
		}
		return insertNotifications(ctx, tx, notifs)
	})
	if errors.Is(err, domain.ErrAuctionNotFound) {
		return domain.ErrAuctionNotFound
	}
	if err != nil {
		return fmt.Errorf("auction store: force winner %s: %w", id, err)
	}
	return nil
}

// SetImageURL updates the auction's image URL.
func (s *AuctionStore) SetImageURL(ctx context.Context, id, imageURL string) error {
	const query = `
		UPDATE auctions
		SET image_url = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, imageURL)
	if err != nil {
		return fmt.Errorf("auction store: set image url %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

func (s *AuctionStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertNotifications(ctx context.Context, tx pgx.Tx, notifs []domain.Notification) error {
	const query = `
		INSERT INTO notifications (id, user_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	for _, n := range notifs {
		if _, err := tx.Exec(ctx, query, n.ID, n.UserID, n.Message, n.IsRead, n.CreatedAt); err != nil {
			return fmt.Errorf("insert notification for %s: %w", n.UserID, err)
		}
	}
	return nil
}
