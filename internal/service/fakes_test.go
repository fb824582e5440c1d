package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mwhitfield/auctionhouse/internal/domain"
	"github.com/mwhitfield/auctionhouse/internal/metrics"
	"github.com/mwhitfield/auctionhouse/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable clock shared by a test's services and fakes.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory AuctionStore and BidStore with the same
// conditional-update semantics as the Postgres implementation: every mutator
// checks its guard under the mutex and reports whether it applied, and
// notifications land only alongside an applied change.
type fakeStore struct {
	mu       sync.Mutex
	auctions map[string]*domain.Auction
	bids     []domain.Bid
	notifs   []domain.Notification
}

var (
	_ domain.AuctionStore = (*fakeStore)(nil)
	_ domain.BidStore     = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{auctions: make(map[string]*domain.Auction)}
}

func (f *fakeStore) put(a domain.Auction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := a
	f.auctions[a.ID] = &cp
}

func (f *fakeStore) seedBid(b domain.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bids = append(f.bids, b)
}

func (f *fakeStore) notifications() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, len(f.notifs))
	copy(out, f.notifs)
	return out
}

func (f *fakeStore) notificationsFor(userID string) []domain.Notification {
	var out []domain.Notification
	for _, n := range f.notifications() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeStore) Create(_ context.Context, a domain.Auction) error {
	f.put(a)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return *a, nil
}

func (f *fakeStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Auction
	for _, a := range f.auctions {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListByStatus(_ context.Context, statuses []domain.AuctionStatus, _ domain.ListOpts) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[domain.AuctionStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []domain.Auction
	for _, a := range f.auctions {
		if want[a.Status] {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Auction
	for _, a := range f.auctions {
		due := false
		switch a.Status {
		case domain.AuctionStatusCreated:
			due = !now.Before(a.StartTime)
		case domain.AuctionStatusActive:
			due = !now.Before(a.EndTime)
		case domain.AuctionStatusEnded:
			due = a.WinnerID == nil && a.CancelledAt == nil && f.hasBidsLocked(a.ID)
		}
		if due {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) hasBidsLocked(auctionID string) bool {
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			return true
		}
	}
	return false
}

func (f *fakeStore) TransitionToActive(_ context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok || a.Status != domain.AuctionStatusCreated || now.Before(a.StartTime) {
		return false, nil
	}
	a.Status = domain.AuctionStatusActive
	a.Version++
	a.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) CloseAuction(_ context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok || a.Status != domain.AuctionStatusActive || now.Before(a.EndTime) {
		return false, nil
	}
	a.Status = domain.AuctionStatusEnded
	a.Version++
	a.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) SelectWinner(_ context.Context, id, winnerID string, notifs []domain.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok || a.Status != domain.AuctionStatusEnded || a.WinnerID != nil || a.CancelledAt != nil {
		return false, nil
	}
	a.Status = domain.AuctionStatusWinnerSelected
	a.WinnerID = &winnerID
	a.Version++
	f.notifs = append(f.notifs, notifs...)
	return true, nil
}

func (f *fakeStore) RecordBid(_ context.Context, bid domain.Bid, notif domain.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[bid.AuctionID]
	if !ok || a.Status != domain.AuctionStatusActive || !bid.Amount.GreaterThan(a.CurrentHighestBid) {
		return false, nil
	}
	a.CurrentHighestBid = bid.Amount
	a.Version++
	f.bids = append(f.bids, bid)
	f.notifs = append(f.notifs, notif)
	return true, nil
}

func (f *fakeStore) CancelAuction(_ context.Context, id string, now time.Time, notifs []domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	a.Status = domain.AuctionStatusEnded
	a.CancelledAt = &now
	a.Version++
	a.UpdatedAt = now
	f.notifs = append(f.notifs, notifs...)
	return nil
}

func (f *fakeStore) ExtendAuction(_ context.Context, id string, newEnd time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	a.EndTime = newEnd
	a.Status = domain.AuctionStatusActive
	a.WinnerID = nil
	a.CancelledAt = nil
	a.Version++
	return nil
}

func (f *fakeStore) ForceWinner(_ context.Context, id, winnerID string, notifs []domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	a.Status = domain.AuctionStatusWinnerSelected
	a.WinnerID = &winnerID
	a.Version++
	f.notifs = append(f.notifs, notifs...)
	return nil
}

func (f *fakeStore) SetImageURL(_ context.Context, id, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	a.ImageURL = imageURL
	return nil
}

func (f *fakeStore) ListByAuction(_ context.Context, auctionID string, _ domain.ListOpts) ([]domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bidLess(out[j], out[i]) })
	return out, nil
}

// bidLess orders bids the way the winner query does: amount descending, then
// earliest bid time, then id.
func bidLess(a, b domain.Bid) bool {
	if !a.Amount.Equal(b.Amount) {
		return a.Amount.LessThan(b.Amount)
	}
	if !a.BidTime.Equal(b.BidTime) {
		return a.BidTime.After(b.BidTime)
	}
	return a.ID > b.ID
}

func (f *fakeStore) HighestBid(_ context.Context, auctionID string) (domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var top *domain.Bid
	for i := range f.bids {
		b := f.bids[i]
		if b.AuctionID != auctionID {
			continue
		}
		if top == nil || bidLess(*top, b) {
			top = &b
		}
	}
	if top == nil {
		return domain.Bid{}, domain.ErrNotFound
	}
	return *top, nil
}

func (f *fakeStore) DistinctBidders(_ context.Context, auctionID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, b := range f.bids {
		if b.AuctionID == auctionID && !seen[b.BidderID] {
			seen[b.BidderID] = true
			out = append(out, b.BidderID)
		}
	}
	return out, nil
}

func (f *fakeStore) CountByAuction(_ context.Context, auctionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			n++
		}
	}
	return n, nil
}

// fakeLocks hands out locks unconditionally, or reports them held.
type fakeLocks struct {
	held bool
}

func (l *fakeLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

// fakeLimiter returns a fixed allow decision and counts calls.
type fakeLimiter struct {
	mu    sync.Mutex
	allow bool
	calls int
}

func (l *fakeLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.allow, nil
}

// fakeBus records published events.
type busEvent struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{channel: channel, payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *fakeBus) published(channel string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// fakeCache is an in-memory AuctionCache that records invalidations.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]domain.Auction
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Auction)}
}

func (c *fakeCache) Set(_ context.Context, a domain.Auction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[a.ID] = a
	return nil
}

func (c *fakeCache) Get(_ context.Context, id string) (domain.Auction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	return a, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// fakeAudit records audit entries.
type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (a *fakeAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out, nil
}

func (a *fakeAudit) eventsNamed(event string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Event == event {
			n++
		}
	}
	return n
}

// env bundles one test's fakes and services around a shared clock.
type env struct {
	store *fakeStore
	cache *fakeCache
	bus   *fakeBus
	audit *fakeAudit
	locks *fakeLocks
	clock *fakeClock

	lifecycle *LifecycleService
}

func newEnv(now time.Time) *env {
	e := &env{
		store: newFakeStore(),
		cache: newFakeCache(),
		bus:   &fakeBus{},
		audit: &fakeAudit{},
		locks: &fakeLocks{},
		clock: newFakeClock(now),
	}
	e.lifecycle = NewLifecycleService(
		e.store, e.store, notify.NewEmitter(e.clock),
		e.locks, e.cache, e.bus, e.audit,
		metrics.NewCollector(), e.clock, testLogger(),
	)
	return e
}

func (e *env) bidService(rateLimit int, limiter domain.RateLimiter) *BidService {
	if limiter == nil {
		limiter = &fakeLimiter{allow: true}
	}
	return NewBidService(
		e.store, e.store, notify.NewEmitter(e.clock),
		limiter, e.lifecycle, e.cache, e.bus, e.audit,
		metrics.NewCollector(), e.clock, testLogger(),
		rateLimit, time.Second, 3,
	)
}

func (e *env) disputeService() *DisputeService {
	return NewDisputeService(
		e.store, e.store, notify.NewEmitter(e.clock),
		e.cache, e.bus, e.audit,
		metrics.NewCollector(), nil, e.clock, testLogger(),
	)
}

func (e *env) auctionService() *AuctionService {
	return NewAuctionService(
		e.store, e.store, e.cache, e.lifecycle, nil, e.clock, testLogger(),
	)
}
