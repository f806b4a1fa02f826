package query

import (
	"errors"
	"fmt"

	"marketpulse/internal/domain"
)

// Causes. Every operation failure wraps exactly one of these.
var (
	// ErrEmptyResponse means the service returned no text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrParse means the text was not valid JSON or did not match the
	// expected schema.
	ErrParse = errors.New("malformed response")
	// ErrNetwork means the request to the service failed.
	ErrNetwork = errors.New("request failed")
)

// Messages shown next to the region that triggered the failing query.
const (
	StockLookupMessage     = "Failed to fetch stock data. Please check the ticker and try again."
	HistoricalFetchMessage = "Could not load historical data."
	NewsFetchMessage       = "Failed to load financial news."
)

// StockLookupError is returned by LookupStock.
type StockLookupError struct {
	Query string
	Err   error
}

func (e *StockLookupError) Error() string {
	return fmt.Sprintf("failed to process data for query %s: %v", e.Query, e.Err)
}

func (e *StockLookupError) Unwrap() error { return e.Err }

// UserMessage returns the text displayed under the search box.
func (e *StockLookupError) UserMessage() string { return StockLookupMessage }

// HistoricalFetchError is returned by FetchHistory.
type HistoricalFetchError struct {
	Ticker string
	Range  domain.ChartRange
	Err    error
}

func (e *HistoricalFetchError) Error() string {
	return fmt.Sprintf("failed to fetch historical data for %s (%s): %v", e.Ticker, e.Range, e.Err)
}

func (e *HistoricalFetchError) Unwrap() error { return e.Err }

// UserMessage returns the text displayed in the chart panel.
func (e *HistoricalFetchError) UserMessage() string { return HistoricalFetchMessage }

// NewsFetchError is returned by FetchNews.
type NewsFetchError struct {
	Err error
}

func (e *NewsFetchError) Error() string {
	return fmt.Sprintf("failed to fetch financial news: %v", e.Err)
}

func (e *NewsFetchError) Unwrap() error { return e.Err }

// UserMessage returns the text displayed in the news panel.
func (e *NewsFetchError) UserMessage() string { return NewsFetchMessage }

// UserMessage returns the display text for a query failure, or err.Error()
// for anything else.
func UserMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}

// parseErrorf wraps ErrParse with detail.
func parseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
