// Package marketpulse is a Go SDK for the marketpulse-server HTTP API.
package marketpulse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Instrument is one tracked security as returned by the server.
type Instrument struct {
	Name             string  `json:"name"`
	Ticker           string  `json:"ticker"`
	CurrentValue     float64 `json:"currentValue"`
	YTDReturn        float64 `json:"ytdReturn"`
	DailyChange      float64 `json:"dailyChange"`
	MarketCap        float64 `json:"marketCap"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
}

// Row is a table row with the server's display strings.
type Row struct {
	Instrument
	ValueText     string `json:"valueText"`
	DailyText     string `json:"dailyText"`
	YTDText       string `json:"ytdText"`
	MarketCapText string `json:"marketCapText"`
	HighText      string `json:"highText"`
	LowText       string `json:"lowText"`
	Flash         bool   `json:"flash"`
}

// Sort is the table ordering.
type Sort struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`
}

// Table is the sorted instrument list.
type Table struct {
	Seq  uint64 `json:"seq"`
	Sort Sort   `json:"sort"`
	Rows []Row  `json:"instruments"`
}

// Point is one closing price.
type Point struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Detail is the selected instrument and its price history.
type Detail struct {
	Selected *Instrument `json:"selected,omitempty"`
	Range    string      `json:"range"`
	Loading  bool        `json:"loading"`
	Series   []Point     `json:"series,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// SearchResult is the outcome of a free-text lookup.
type SearchResult struct {
	Query  string      `json:"query"`
	Result *Instrument `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewsItem is one headline.
type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Summary     string `json:"summary"`
}

// News is the news panel.
type News struct {
	Items []NewsItem `json:"items,omitempty"`
	Error string     `json:"error,omitempty"`
}

// QueryLogEntry is one recorded upstream call.
type QueryLogEntry struct {
	Kind       string    `json:"kind"`
	Ident      string    `json:"ident"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketpulse: %d %s", e.Status, e.Message)
}

// Client provides a Go SDK for interacting with the marketpulse-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new marketpulse API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Instruments returns the table sorted by key and dir. Empty values keep the
// server's current ordering.
func (c *Client) Instruments(ctx context.Context, key, dir string) (*Table, error) {
	v := url.Values{}
	if key != "" {
		v.Set("sort", key)
	}
	if dir != "" {
		v.Set("dir", dir)
	}
	var t Table
	if err := c.do(ctx, http.MethodGet, "/api/instruments", v, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Sort applies the header-click toggle for key on the server's table.
func (c *Client) Sort(ctx context.Context, key string) (*Sort, error) {
	var s Sort
	if err := c.do(ctx, http.MethodPost, "/api/sort/"+url.PathEscape(key), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Search looks up a free-text query.
func (c *Client) Search(ctx context.Context, q string) (*SearchResult, error) {
	var r SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/search", url.Values{"q": {q}}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Select opens the detail view for ticker and returns it with its history.
func (c *Client) Select(ctx context.Context, ticker string) (*Detail, error) {
	var d Detail
	if err := c.do(ctx, http.MethodPut, "/api/detail/"+url.PathEscape(ticker), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetRange changes the chart range of the open detail view.
func (c *Client) SetRange(ctx context.Context, r string) (*Detail, error) {
	var d Detail
	if err := c.do(ctx, http.MethodPut, "/api/detail/range/"+url.PathEscape(r), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CloseDetail closes the detail view.
func (c *Client) CloseDetail(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/detail", nil, nil)
}

// News returns the current news panel. refresh reloads it first.
func (c *Client) News(ctx context.Context, refresh bool) (*News, error) {
	method, path := http.MethodGet, "/api/news"
	if refresh {
		method, path = http.MethodPost, "/api/news/refresh"
	}
	var n News
	if err := c.do(ctx, method, path, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Headlines returns external headlines for ticker, newest first.
func (c *Client) Headlines(ctx context.Context, ticker string, limit int) ([]NewsItem, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", fmt.Sprint(limit))
	}
	var resp struct {
		Items []NewsItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/headlines/"+url.PathEscape(ticker), v, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Queries returns up to limit recent upstream calls, newest first.
func (c *Client) Queries(ctx context.Context, limit int) ([]QueryLogEntry, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", fmt.Sprint(limit))
	}
	var resp struct {
		Queries []QueryLogEntry `json:"queries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/queries", v, &resp); err != nil {
		return nil, err
	}
	return resp.Queries, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
