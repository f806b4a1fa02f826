// Package domain defines the core value types shared across marketpulse:
// instruments shown on the dashboard, historical price points, news items and
// chart ranges.
package domain

import (
	"fmt"
	"strings"
)

// Instrument is a tradable security or index tracked by the dashboard. Ticker
// is the identity key and is unique within a store.
type Instrument struct {
	Name             string  `json:"name" yaml:"name"`
	Ticker           string  `json:"ticker" yaml:"ticker"`
	CurrentValue     float64 `json:"currentValue" yaml:"currentValue"`
	YTDReturn        float64 `json:"ytdReturn" yaml:"ytdReturn"`     // percent
	DailyChange      float64 `json:"dailyChange" yaml:"dailyChange"` // percent
	MarketCap        float64 `json:"marketCap" yaml:"marketCap"`     // USD, 0 when not applicable
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh" yaml:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow" yaml:"fiftyTwoWeekLow"`
}

// HistoricalPoint is a single closing price. Date is formatted YYYY-MM-DD.
type HistoricalPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// DateLayout is the layout of HistoricalPoint.Date.
const DateLayout = "2006-01-02"

// NewsItem is a single financial news article. PublishedAt is ISO 8601.
type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Summary     string `json:"summary"`
}

// ChartRange is the lookback window of a historical series.
type ChartRange string

const (
	Range1M ChartRange = "1m"
	Range6M ChartRange = "6m"
	Range1Y ChartRange = "1y"
	Range5Y ChartRange = "5y"
)

// DefaultRange is the range used when an instrument is first selected.
const DefaultRange = Range1Y

// AllRanges returns the selectable ranges in display order.
func AllRanges() []ChartRange {
	return []ChartRange{Range1M, Range6M, Range1Y, Range5Y}
}

// ParseChartRange parses a range identifier, case-insensitively.
func ParseChartRange(s string) (ChartRange, error) {
	r := ChartRange(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case Range1M, Range6M, Range1Y, Range5Y:
		return r, nil
	}
	return "", fmt.Errorf("unknown chart range %q", s)
}

// Label returns the upper-cased form shown on range buttons.
func (r ChartRange) Label() string {
	return strings.ToUpper(string(r))
}
