// Package controller owns the dashboard state and the transitions between
// states: ticks from the instrument store, searches, instrument selection,
// chart range changes and the news panel. Asynchronous results carry a
// request token and are dropped if a newer request for the same slot has
// started since.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
	"marketpulse/internal/market"
	"marketpulse/internal/query"
)

var (
	// ErrUnknownInstrument is returned by Select for a ticker that is neither
	// in the store nor the current search result.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrSuperseded is returned when a result arrived after a newer request
	// for the same slot and was discarded.
	ErrSuperseded = errors.New("request superseded")
	// ErrNoSelection is returned by Chart when no instrument is selected.
	ErrNoSelection = errors.New("no instrument selected")
)

// Querier is the subset of the query client the controller needs.
type Querier interface {
	LookupStock(ctx context.Context, q string) (domain.Instrument, error)
	FetchHistory(ctx context.Context, ticker string, r domain.ChartRange) ([]domain.HistoricalPoint, error)
	FetchNews(ctx context.Context) ([]domain.NewsItem, error)
}

// Controller serializes all state transitions behind a mutex. Query calls run
// outside the lock.
type Controller struct {
	store *market.Store
	q     Querier
	log   *slog.Logger
	token func() string

	mu           sync.Mutex
	state        State
	instruments  []domain.Instrument // store order
	searchToken  string
	historyToken string
	newsToken    string

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Change
}

// Option configures a Controller.
type Option func(*Controller)

// WithDefaultRange sets the chart range used before the user picks one.
func WithDefaultRange(r domain.ChartRange) Option {
	return func(c *Controller) { c.state.Detail.Range = r }
}

// WithTokens overrides the request token generator.
func WithTokens(next func() string) Option {
	return func(c *Controller) { c.token = next }
}

// New creates a Controller over store. The initial instrument list is the
// store's current snapshot.
func New(store *market.Store, q Querier, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		q:     q,
		log:   log,
		token: uuid.NewString,
		subs:  make(map[int]chan Change),
	}
	c.state.Sort = dashboard.DefaultSort()
	c.state.Detail.Range = domain.DefaultRange
	c.state.Seq = store.Seq()
	c.instruments = store.Snapshot()
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a deep copy of the current state with the instrument list
// sorted by the current sort state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Instruments returns the instrument list in store order.
func (c *Controller) Instruments() []domain.Instrument {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.instruments)
}

// Tick installs the snapshot carried by a store tick.
func (c *Controller) Tick(evt market.TickEvent) {
	c.mu.Lock()
	if evt.Seq != 0 && evt.Seq <= c.state.Seq {
		c.mu.Unlock()
		return
	}
	c.instruments = slices.Clone(evt.Instruments)
	c.state.Seq = evt.Seq
	c.state.Flash = Flash{Tickers: slices.Clone(evt.Changed), Until: evt.FlashUntil}
	c.mu.Unlock()
	c.publish(ChangeTick)
}

// Sort applies a column-header click and returns the new sort state.
func (c *Controller) Sort(key dashboard.SortKey) dashboard.SortState {
	c.mu.Lock()
	c.state.Sort = c.state.Sort.Toggle(key)
	s := c.state.Sort
	c.mu.Unlock()
	c.publish(ChangeSort)
	return s
}

// Search looks up a free-text query and shows the result. A blank query is a
// no-op. The result is never added to the store.
func (c *Controller) Search(ctx context.Context, q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}

	c.mu.Lock()
	token := c.token()
	c.searchToken = token
	c.state.Search = SearchState{Query: q, Loading: true}
	c.mu.Unlock()
	c.publish(ChangeSearch)

	inst, err := c.q.LookupStock(ctx, q)

	c.mu.Lock()
	if c.searchToken != token {
		c.mu.Unlock()
		c.log.Debug("discarding stale search result", "query", q)
		return ErrSuperseded
	}
	c.state.Search.Loading = false
	if err != nil {
		c.state.Search.Error = query.UserMessage(err)
	} else {
		c.state.Search.Result = &inst
	}
	c.mu.Unlock()
	c.publish(ChangeSearch)
	return err
}

// Select opens the detail view for ticker and fetches its history for the
// current range. The previous series is discarded immediately.
func (c *Controller) Select(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	c.mu.Lock()
	inst, ok := c.lookupLocked(ticker)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, ticker)
	}
	c.state.Detail.Selected = &inst
	c.state.Detail.Series = nil
	r := c.state.Detail.Range
	token := c.beginHistoryLocked()
	c.mu.Unlock()

	return c.fetchHistory(ctx, token, ticker, r)
}

// ChangeRange sets the chart range and, when an instrument is selected,
// re-fetches its history for the new range.
func (c *Controller) ChangeRange(ctx context.Context, r domain.ChartRange) error {
	c.mu.Lock()
	c.state.Detail.Range = r
	sel := c.state.Detail.Selected
	if sel == nil {
		c.mu.Unlock()
		c.publish(ChangeDetail)
		return nil
	}
	ticker := sel.Ticker
	token := c.beginHistoryLocked()
	c.mu.Unlock()

	return c.fetchHistory(ctx, token, ticker, r)
}

// CloseDetail clears the selection and its series. Any history fetch still in
// flight is discarded when it completes.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	c.historyToken = ""
	c.state.Detail = DetailState{Range: c.state.Detail.Range}
	c.mu.Unlock()
	c.publish(ChangeDetail)
}

// Chart returns the geometry of the selected instrument's series.
func (c *Controller) Chart(width, height float64) (dashboard.ChartGeometry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Detail.Selected == nil {
		return dashboard.ChartGeometry{}, ErrNoSelection
	}
	return dashboard.ComputeChart(c.state.Detail.Series, width, height), nil
}

// beginHistoryLocked issues a new history token and marks the detail as
// loading. It must run in the same critical section that sets the selection
// so a CloseDetail in between cannot be overwritten.
func (c *Controller) beginHistoryLocked() string {
	token := c.token()
	c.historyToken = token
	c.state.Detail.Loading = true
	c.state.Detail.Error = ""
	return token
}

func (c *Controller) fetchHistory(ctx context.Context, token, ticker string, r domain.ChartRange) error {
	c.publish(ChangeDetail)

	pts, err := c.q.FetchHistory(ctx, ticker, r)

	c.mu.Lock()
	if c.historyToken != token {
		c.mu.Unlock()
		c.log.Debug("discarding stale history", "ticker", ticker, "range", r)
		return ErrSuperseded
	}
	c.state.Detail.Loading = false
	if err != nil {
		c.state.Detail.Series = nil
		c.state.Detail.Error = query.UserMessage(err)
	} else {
		c.state.Detail.Series = pts
	}
	c.mu.Unlock()
	c.publish(ChangeDetail)
	return err
}

// LoadNews fetches the news digest, replacing whatever is shown.
func (c *Controller) LoadNews(ctx context.Context) error {
	c.mu.Lock()
	token := c.token()
	c.newsToken = token
	c.state.News.Loading = true
	c.state.News.Error = ""
	c.mu.Unlock()
	c.publish(ChangeNews)

	items, err := c.q.FetchNews(ctx)

	c.mu.Lock()
	if c.newsToken != token {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.state.News.Loading = false
	if err != nil {
		c.state.News.Error = query.UserMessage(err)
	} else {
		c.state.News.Items = items
	}
	c.mu.Unlock()
	c.publish(ChangeNews)
	return err
}

// Run applies store ticks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	id, ch := c.store.Subscribe(16)
	defer c.store.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			c.Tick(evt)
		}
	}
}

// Subscribe registers for Change notifications.
func (c *Controller) Subscribe(bufSize int) (id int, ch <-chan Change) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id = c.nextSubID
	c.nextSubID++
	sc := make(chan Change, bufSize)
	c.subs[id] = sc
	return id, sc
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Controller) Unsubscribe(id int) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

func (c *Controller) publish(kind ChangeKind) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if len(c.subs) == 0 {
		return
	}
	chg := Change{Kind: kind, State: c.State()}
	for _, ch := range c.subs {
		select {
		case ch <- chg:
		default:
			// Slow subscriber, drop.
		}
	}
}

func (c *Controller) lookupLocked(ticker string) (domain.Instrument, bool) {
	for _, inst := range c.instruments {
		if inst.Ticker == ticker {
			return inst, true
		}
	}
	if r := c.state.Search.Result; r != nil && r.Ticker == ticker {
		return *r, true
	}
	return domain.Instrument{}, false
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Instruments = dashboard.SortInstruments(c.instruments, c.state.Sort)
	s.Flash.Tickers = slices.Clone(c.state.Flash.Tickers)
	s.Search.Result = cloneInstrument(c.state.Search.Result)
	s.Detail.Selected = cloneInstrument(c.state.Detail.Selected)
	s.Detail.Series = slices.Clone(c.state.Detail.Series)
	s.News.Items = slices.Clone(c.state.News.Items)
	return s
}
