package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

// maxImageBytes caps the accepted upload size for auction images.
const maxImageBytes = 10 << 20

// AuctionService defines the methods that the auction handler requires from
// the service layer.
type AuctionService interface {
	Create(ctx context.Context, a domain.Auction) (domain.AuctionSnapshot, error)
	Get(ctx context.Context, id string) (domain.AuctionSnapshot, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionSnapshot, error)
	ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionSnapshot, error)
	ListPast(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionSnapshot, error)
	AttachImage(ctx context.Context, id, filename string, data []byte) (string, error)
}

// AuctionReconciler triggers an on-demand reconcile of a single auction.
type AuctionReconciler interface {
	Reconcile(ctx context.Context, id string) (domain.AuctionSnapshot, error)
}

// AuctionHandler serves auction CRUD and lifecycle endpoints.
type AuctionHandler struct {
	auctions   AuctionService
	reconciler AuctionReconciler
	logger     *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given services and logger.
func NewAuctionHandler(auctions AuctionService, reconciler AuctionReconciler, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions:   auctions,
		reconciler: reconciler,
		logger:     logger,
	}
}

// createAuctionRequest is the JSON body for creating an auction.
type createAuctionRequest struct {
	ProductName string          `json:"product_name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	SellerID    string          `json:"seller_id"`
}

// listAuctionsResponse wraps the auction list response.
type listAuctionsResponse struct {
	Auctions []domain.AuctionSnapshot `json:"auctions"`
}

// CreateAuction creates a new auction from a JSON body.
// POST /api/auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.auctions.Create(r.Context(), domain.Auction{
		ProductName: req.ProductName,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		SellerID:    req.SellerID,
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "create auction")
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

// GetAuction returns a reconciled snapshot of one auction.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	snap, err := h.auctions.Get(r.Context(), id)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "get auction")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListAuctions returns all auctions, newest first.
// GET /api/auctions?limit=50&offset=0
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.auctions.List, "list auctions")
}

// ListActive returns currently biddable auctions.
// GET /api/auctions/active
func (h *AuctionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.auctions.ListActive, "list active auctions")
}

// ListPast returns finished auctions.
// GET /api/auctions/past
func (h *AuctionHandler) ListPast(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.auctions.ListPast, "list past auctions")
}

func (h *AuctionHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, domain.ListOpts) ([]domain.AuctionSnapshot, error),
	op string,
) {
	snaps, err := fn(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, op)
		return
	}
	if snaps == nil {
		snaps = []domain.AuctionSnapshot{}
	}
	writeJSON(w, http.StatusOK, listAuctionsResponse{Auctions: snaps})
}

// ReconcileAuction forces a lifecycle reconcile and returns the resulting
// snapshot.
// POST /api/auctions/{id}/reconcile
func (h *AuctionHandler) ReconcileAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	snap, err := h.reconciler.Reconcile(r.Context(), id)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "reconcile auction")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// UploadImage attaches an image to an auction. The body is the raw image;
// the filename comes from the X-Filename header.
// POST /api/auctions/{id}/image
func (h *AuctionHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing auction id")
		return
	}

	filename := r.Header.Get("X-Filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "missing X-Filename header")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty image payload")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 10 MiB limit")
		return
	}

	url, err := h.auctions.AttachImage(r.Context(), id, filename, data)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "upload image")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"auction_id": id,
		"image_url":  url,
	})
}
