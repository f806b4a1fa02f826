// Package query turns structured data requests (instrument lookup, historical
// series, news digest) into calls against a generative JSON-completion
// service and validates what comes back.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"marketpulse/internal/domain"
)

// Generator submits a natural-language prompt with an expected response
// schema and returns the raw response text.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Kind identifies which of the three queries a call was.
type Kind string

const (
	KindStock   Kind = "stock"
	KindHistory Kind = "history"
	KindNews    Kind = "news"
)

// Call describes one completed query for the query log.
type Call struct {
	Kind     Kind
	Ident    string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Recorder receives a Call after every query. Implementations must not block
// for long; errors are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, c Call) error
}

// Client is a stateless wrapper around a Generator. It never retries, caches
// or rate-limits.
type Client struct {
	gen      Generator
	log      *slog.Logger
	timeout  time.Duration
	recorder Recorder
	now      func() time.Time
}

// NewClient creates a Client. timeout bounds each call when positive.
func NewClient(gen Generator, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{gen: gen, log: log, timeout: timeout, now: time.Now}
}

// SetRecorder installs a query log. Pass nil to disable.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// LookupStock resolves a ticker symbol or company name to an instrument. The
// service may invent plausible data for unknown symbols; that is not an error.
func (c *Client) LookupStock(ctx context.Context, q string) (domain.Instrument, error) {
	q = strings.TrimSpace(q)
	var inst domain.Instrument
	err := c.do(ctx, KindStock, q, stockPrompt(q), stockSchema, func(text string) error {
		var err error
		inst, err = parseStock(text)
		return err
	})
	if err != nil {
		c.log.Error("fetching stock data", "query", q, "error", err)
		return domain.Instrument{}, &StockLookupError{Query: q, Err: err}
	}
	return inst, nil
}

// FetchHistory returns the closing-price series for ticker over r, sorted
// ascending by date.
func (c *Client) FetchHistory(ctx context.Context, ticker string, r domain.ChartRange) ([]domain.HistoricalPoint, error) {
	var pts []domain.HistoricalPoint
	ident := ticker + "/" + string(r)
	err := c.do(ctx, KindHistory, ident, historyPrompt(ticker, r), historySchema, func(text string) error {
		var err error
		pts, err = parseHistory(text)
		return err
	})
	if err != nil {
		c.log.Error("fetching historical data", "ticker", ticker, "range", r, "error", err)
		return nil, &HistoricalFetchError{Ticker: ticker, Range: r, Err: err}
	}
	return pts, nil
}

// FetchNews returns the current financial news digest.
func (c *Client) FetchNews(ctx context.Context) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	err := c.do(ctx, KindNews, "top", newsPrompt, newsSchema, func(text string) error {
		var err error
		items, err = parseNews(text)
		return err
	})
	if err != nil {
		c.log.Error("fetching financial news", "error", err)
		return nil, &NewsFetchError{Err: err}
	}
	return items, nil
}

// do runs one generate-and-parse round and reports it to the recorder.
func (c *Client) do(ctx context.Context, kind Kind, ident, prompt string, schema *genai.Schema, parse func(string) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	err := c.generate(ctx, prompt, schema, parse)
	c.record(ctx, Call{Kind: kind, Ident: ident, Started: start, Duration: c.now().Sub(start), Err: err})
	return err
}

func (c *Client) generate(ctx context.Context, prompt string, schema *genai.Schema, parse func(string) error) error {
	text, err := c.gen.Generate(ctx, prompt, schema)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	text = trimFence(text)
	if text == "" {
		return ErrEmptyResponse
	}
	return parse(text)
}

func (c *Client) record(ctx context.Context, call Call) {
	if c.recorder == nil {
		return
	}
	// The call context may already be done; the log entry should still land.
	if err := c.recorder.Record(context.WithoutCancel(ctx), call); err != nil {
		c.log.Warn("recording query", "kind", call.Kind, "ident", call.Ident, "error", err)
	}
}
