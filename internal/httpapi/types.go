// Package httpapi serves the dashboard over HTTP: the HTML page, a JSON API
// mirroring every controller transition, the chart as SVG and a websocket
// feed of state changes.
package httpapi

import (
	"time"

	"marketpulse/internal/controller"
	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
)

// InstrumentJSON is one table row with display strings precomputed.
type InstrumentJSON struct {
	domain.Instrument
	ValueText     string `json:"valueText"`
	DailyText     string `json:"dailyText"`
	YTDText       string `json:"ytdText"`
	MarketCapText string `json:"marketCapText"`
	HighText      string `json:"highText"`
	LowText       string `json:"lowText"`
	DailyTone     int    `json:"dailyTone"`
	YTDTone       int    `json:"ytdTone"`
	Flash         bool   `json:"flash"`
}

// InstrumentsResponse is the sorted table projection.
type InstrumentsResponse struct {
	Seq         uint64              `json:"seq"`
	Sort        dashboard.SortState `json:"sort"`
	Instruments []InstrumentJSON    `json:"instruments"`
}

// QueryLogEntryJSON is one row of the query log.
type QueryLogEntryJSON struct {
	Kind       string    `json:"kind"`
	Ident      string    `json:"ident"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// QueryLogResponse lists recent upstream calls.
type QueryLogResponse struct {
	Queries []QueryLogEntryJSON `json:"queries"`
}

// WSMessage is sent over the websocket: a full "state" on connect, then a
// "change" after every transition.
type WSMessage struct {
	Type  string                `json:"type"`
	Kind  controller.ChangeKind `json:"kind,omitempty"`
	State controller.State      `json:"state"`
}

// HeadlinesResponse lists per-ticker headlines from the external feeds.
type HeadlinesResponse struct {
	Ticker string            `json:"ticker"`
	Items  []domain.NewsItem `json:"items"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Seq         uint64 `json:"seq"`
	Instruments int    `json:"instruments"`
}

func convertInstrument(inst domain.Instrument, flash controller.Flash, now time.Time) InstrumentJSON {
	return InstrumentJSON{
		Instrument:    inst,
		ValueText:     dashboard.FormatCurrency(inst.CurrentValue),
		DailyText:     dashboard.FormatPercent(inst.DailyChange),
		YTDText:       dashboard.FormatPercent(inst.YTDReturn),
		MarketCapText: dashboard.FormatMarketCap(inst.MarketCap),
		HighText:      dashboard.FormatCurrency(inst.FiftyTwoWeekHigh),
		LowText:       dashboard.FormatCurrency(inst.FiftyTwoWeekLow),
		DailyTone:     dashboard.Tone(inst.DailyChange),
		YTDTone:       dashboard.Tone(inst.YTDReturn),
		Flash:         flash.Active(inst.Ticker, now),
	}
}

func convertInstruments(list []domain.Instrument, flash controller.Flash, now time.Time) []InstrumentJSON {
	out := make([]InstrumentJSON, len(list))
	for i, inst := range list {
		out[i] = convertInstrument(inst, flash, now)
	}
	return out
}
