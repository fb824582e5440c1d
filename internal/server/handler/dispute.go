package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// DisputeService defines the methods that the dispute handler requires from
// the service layer.
type DisputeService interface {
	Resolve(ctx context.Context, id, action, winnerID string, extendBy time.Duration) (domain.AuctionSnapshot, error)
}

// DisputeHandler serves the administrative dispute endpoint.
type DisputeHandler struct {
	disputes DisputeService
	logger   *slog.Logger
}

// NewDisputeHandler creates a DisputeHandler with the given service and logger.
func NewDisputeHandler(disputes DisputeService, logger *slog.Logger) *DisputeHandler {
	return &DisputeHandler{
		disputes: disputes,
		logger:   logger,
	}
}

// disputeRequest is the JSON body for resolving a dispute.
type disputeRequest struct {
	Action          string `json:"action"`
	WinnerID        string `json:"winner_id"`
	ExtendBySeconds int64  `json:"extend_by_seconds"`
}

// ResolveDispute applies an administrative action to an auction.
// POST /api/admin/auctions/{id}/dispute
func (h *DisputeHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	extendBy := time.Duration(req.ExtendBySeconds) * time.Second
	snap, err := h.disputes.Resolve(r.Context(), id, req.Action, req.WinnerID, extendBy)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "resolve dispute")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
