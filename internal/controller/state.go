package controller

import (
	"slices"
	"time"

	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
)

// State is a point-in-time copy of everything the dashboard shows.
type State struct {
	Seq         uint64              `json:"seq"`
	Instruments []domain.Instrument `json:"instruments"` // sorted per Sort
	Sort        dashboard.SortState `json:"sort"`
	Flash       Flash               `json:"flash"`
	Search      SearchState         `json:"search"`
	Detail      DetailState         `json:"detail"`
	News        NewsState           `json:"news"`
}

// Flash lists the rows whose value changed on the last tick.
type Flash struct {
	Tickers []string  `json:"tickers,omitempty"`
	Until   time.Time `json:"until"`
}

// Active reports whether ticker should still be highlighted at now.
func (f Flash) Active(ticker string, now time.Time) bool {
	return now.Before(f.Until) && slices.Contains(f.Tickers, ticker)
}

// SearchState is the free-text lookup region.
type SearchState struct {
	Query   string             `json:"query"`
	Loading bool               `json:"loading"`
	Result  *domain.Instrument `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// DetailState is the selected instrument and its chart.
type DetailState struct {
	Selected *domain.Instrument       `json:"selected,omitempty"`
	Range    domain.ChartRange        `json:"range"`
	Loading  bool                     `json:"loading"`
	Series   []domain.HistoricalPoint `json:"series,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// NewsState is the news panel.
type NewsState struct {
	Loading bool              `json:"loading"`
	Items   []domain.NewsItem `json:"items,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ChangeKind names the region a Change touched.
type ChangeKind string

const (
	ChangeTick   ChangeKind = "tick"
	ChangeSort   ChangeKind = "sort"
	ChangeSearch ChangeKind = "search"
	ChangeDetail ChangeKind = "detail"
	ChangeNews   ChangeKind = "news"
)

// Change is published to subscribers after every state transition.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	State State      `json:"state"`
}

func cloneInstrument(inst *domain.Instrument) *domain.Instrument {
	if inst == nil {
		return nil
	}
	c := *inst
	return &c
}
