package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// BidService defines the methods that the bid handler requires from the
// service layer.
type BidService interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.Bid, error)
	HighestBid(ctx context.Context, auctionID string) (domain.Bid, error)
	ListByAuction(ctx context.Context, auctionID string, opts domain.ListOpts) ([]domain.Bid, error)
}

// BidHandler serves bid-related HTTP endpoints.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler with the given service and logger.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		bids:   bids,
		logger: logger,
	}
}

// placeBidRequest is the JSON body for placing a bid.
type placeBidRequest struct {
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// listBidsResponse wraps the bid list response.
type listBidsResponse struct {
	Bids []domain.Bid `json:"bids"`
}

// PlaceBid submits a bid on an auction.
// POST /api/bids
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AuctionID == "" || req.BidderID == "" {
		writeError(w, http.StatusBadRequest, "auction_id and bidder_id are required")
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), req.AuctionID, req.BidderID, req.Amount)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "place bid")
		return
	}

	writeJSON(w, http.StatusCreated, bid)
}

// ListBids returns an auction's bids, highest first.
// GET /api/auctions/{id}/bids
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	bids, err := h.bids.ListByAuction(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "list bids")
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, listBidsResponse{Bids: bids})
}

// HighestBid returns the current winning candidate for an auction. A 404
// means the auction has no bids yet.
// GET /api/auctions/{id}/highest-bid
func (h *BidHandler) HighestBid(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	bid, err := h.bids.HighestBid(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no bids")
			return
		}
		writeDomainError(r.Context(), w, h.logger, err, "highest bid")
		return
	}
	writeJSON(w, http.StatusOK, bid)
}
