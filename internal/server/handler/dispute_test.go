package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/mwhitfield/auctionhouse/internal/domain"
)

type stubDisputeService struct {
	gotAction   string
	gotWinnerID string
	gotExtendBy time.Duration
	err         error
}

func (s *stubDisputeService) Resolve(_ context.Context, id, action, winnerID string, extendBy time.Duration) (domain.AuctionSnapshot, error) {
	s.gotAction = action
	s.gotWinnerID = winnerID
	s.gotExtendBy = extendBy
	if s.err != nil {
		return domain.AuctionSnapshot{}, s.err
	}
	return domain.AuctionSnapshot{ID: id, Status: domain.AuctionStatusEnded}, nil
}

func resolveRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/auctions/a1/dispute", strings.NewReader(body))
	req.SetPathValue("id", "a1")
	return req
}

func TestResolveDispute_OK(t *testing.T) {
	svc := &stubDisputeService{}
	h := NewDisputeHandler(svc, handlerLogger())

	rec := httptest.NewRecorder()
	h.ResolveDispute(rec, resolveRequest(`{"action":"extend","extend_by_seconds":1800}`))

	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "extend", svc.gotAction)
	check.Equal(t, 30*time.Minute, svc.gotExtendBy)
}

func TestResolveDispute_ForceWinnerPassthrough(t *testing.T) {
	svc := &stubDisputeService{}
	h := NewDisputeHandler(svc, handlerLogger())

	rec := httptest.NewRecorder()
	h.ResolveDispute(rec, resolveRequest(`{"action":"force_winner","winner_id":"bob"}`))

	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "force_winner", svc.gotAction)
	check.Equal(t, "bob", svc.gotWinnerID)
}

func TestResolveDispute_MissingAction(t *testing.T) {
	h := NewDisputeHandler(&stubDisputeService{}, handlerLogger())

	rec := httptest.NewRecorder()
	h.ResolveDispute(rec, resolveRequest(`{}`))

	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveDispute_InvalidDispute(t *testing.T) {
	svc := &stubDisputeService{err: domain.ErrInvalidDispute}
	h := NewDisputeHandler(svc, handlerLogger())

	rec := httptest.NewRecorder()
	h.ResolveDispute(rec, resolveRequest(`{"action":"bogus"}`))

	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveDispute_NotFound(t *testing.T) {
	svc := &stubDisputeService{err: domain.ErrAuctionNotFound}
	h := NewDisputeHandler(svc, handlerLogger())

	rec := httptest.NewRecorder()
	h.ResolveDispute(rec, resolveRequest(`{"action":"cancel"}`))

	check.Equal(t, http.StatusNotFound, rec.Code)
}
