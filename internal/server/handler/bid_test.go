package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

func handlerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubBidService returns canned values for each BidService method.
type stubBidService struct {
	placeBid   func(auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error)
	highestBid func(auctionID string) (domain.Bid, error)
	list       func(auctionID string) ([]domain.Bid, error)
}

func (s *stubBidService) PlaceBid(_ context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error) {
	return s.placeBid(auctionID, bidderID, amount)
}

func (s *stubBidService) HighestBid(_ context.Context, auctionID string) (domain.Bid, error) {
	return s.highestBid(auctionID)
}

func (s *stubBidService) ListByAuction(_ context.Context, auctionID string, _ domain.ListOpts) ([]domain.Bid, error) {
	return s.list(auctionID)
}

func TestPlaceBidHandler_Created(t *testing.T) {
	svc := &stubBidService{
		placeBid: func(auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error) {
			return domain.Bid{ID: "b1", AuctionID: auctionID, BidderID: bidderID, Amount: amount}, nil
		},
	}
	h := NewBidHandler(svc, handlerLogger())

	body := `{"auction_id":"a1","bidder_id":"alice","amount":"150"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bids", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.PlaceBid(rec, req)

	check.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Bid
	check.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	check.Equal(t, "b1", got.ID)
	check.True(t, got.Amount.Equal(decimal.NewFromInt(150)))
}

func TestPlaceBidHandler_MissingFields(t *testing.T) {
	h := NewBidHandler(&stubBidService{}, handlerLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/bids", strings.NewReader(`{"auction_id":"a1"}`))
	rec := httptest.NewRecorder()

	h.PlaceBid(rec, req)

	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBidHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrAuctionNotFound, http.StatusNotFound},
		{"not active", domain.ErrAuctionNotActive, http.StatusConflict},
		{"too low", domain.ErrBidTooLow, http.StatusConflict},
		{"conflict", domain.ErrConflict, http.StatusConflict},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBidService{
				placeBid: func(_, _ string, _ decimal.Decimal) (domain.Bid, error) {
					return domain.Bid{}, tt.err
				},
			}
			h := NewBidHandler(svc, handlerLogger())

			body := `{"auction_id":"a1","bidder_id":"alice","amount":"150"}`
			req := httptest.NewRequest(http.MethodPost, "/api/bids", strings.NewReader(body))
			rec := httptest.NewRecorder()

			h.PlaceBid(rec, req)

			check.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHighestBidHandler_NoBids(t *testing.T) {
	svc := &stubBidService{
		highestBid: func(string) (domain.Bid, error) { return domain.Bid{}, domain.ErrNotFound },
	}
	h := NewBidHandler(svc, handlerLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/a1/highest-bid", nil)
	req.SetPathValue("id", "a1")
	rec := httptest.NewRecorder()

	h.HighestBid(rec, req)

	check.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBidsHandler_EmptyListIsNotNull(t *testing.T) {
	svc := &stubBidService{
		list: func(string) ([]domain.Bid, error) { return nil, nil },
	}
	h := NewBidHandler(svc, handlerLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/a1/bids", nil)
	req.SetPathValue("id", "a1")
	rec := httptest.NewRecorder()

	h.ListBids(rec, req)

	check.Equal(t, http.StatusOK, rec.Code)
	check.True(t, strings.Contains(rec.Body.String(), `"bids":[]`))
}
