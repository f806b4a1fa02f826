package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"marketpulse/internal/dashboard"
	"marketpulse/internal/market"
	"marketpulse/pkg/marketpulse"
)

type fakeDetailer struct {
	selected string
	ranges   []string
	closed   bool
}

func (f *fakeDetailer) Select(_ context.Context, ticker string) (*marketpulse.Detail, error) {
	f.selected = ticker
	return &marketpulse.Detail{
		Selected: &marketpulse.Instrument{Name: "Test", Ticker: ticker},
		Range:    "1y",
		Series:   []marketpulse.Point{{Date: "2024-01-02", Price: 10}, {Date: "2024-01-03", Price: 12}},
	}, nil
}

func (f *fakeDetailer) SetRange(_ context.Context, r string) (*marketpulse.Detail, error) {
	f.ranges = append(f.ranges, r)
	return &marketpulse.Detail{Selected: &marketpulse.Instrument{Ticker: f.selected}, Range: r}, nil
}

func (f *fakeDetailer) CloseDetail(context.Context) error {
	f.closed = true
	return nil
}

func newTestModel(api Detailer) model {
	s := market.NewStore(market.DefaultInstruments())
	ticks := make(chan market.TickEvent)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := initialModel(s, ticks, api, func() {}, logger)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return next.(model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, k string) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(k))
	return next.(model), cmd
}

func TestInitialModelSortsByMarketCap(t *testing.T) {
	m := newTestModel(nil)
	if m.sortState != dashboard.DefaultSort() {
		t.Errorf("sortState = %+v, want default", m.sortState)
	}
	if m.rows[0].Ticker != "BTCUSD" {
		t.Errorf("first row = %s, want BTCUSD", m.rows[0].Ticker)
	}
	if m.selectedTicker != "BTCUSD" {
		t.Errorf("selectedTicker = %q, want first row", m.selectedTicker)
	}
}

func TestSortKeys(t *testing.T) {
	m := newTestModel(nil)

	m, _ = press(t, m, "s")
	if m.sortState.Key != dashboard.NextSortKey(dashboard.SortMarketCap) {
		t.Errorf("after s: key = %s", m.sortState.Key)
	}
	if m.sortState.Dir != dashboard.Ascending {
		t.Errorf("after s: dir = %s, want ascending for a new key", m.sortState.Dir)
	}

	m, _ = press(t, m, "r")
	if m.sortState.Dir != dashboard.Descending {
		t.Errorf("after r: dir = %s, want descending", m.sortState.Dir)
	}
	want := dashboard.SortInstruments(m.store.Snapshot(), m.sortState)
	for i := range want {
		if m.rows[i].Ticker != want[i].Ticker {
			t.Fatalf("row %d = %s, want %s", i, m.rows[i].Ticker, want[i].Ticker)
		}
	}
}

func TestSelectionMovesAndClamps(t *testing.T) {
	m := newTestModel(nil)

	m, _ = press(t, m, "up")
	if m.selectedTicker != m.rows[0].Ticker {
		t.Errorf("up at top moved to %s", m.selectedTicker)
	}
	m, _ = press(t, m, "down")
	if m.selectedTicker != m.rows[1].Ticker {
		t.Errorf("down selected %s, want %s", m.selectedTicker, m.rows[1].Ticker)
	}
	for range m.rows {
		m, _ = press(t, m, "down")
	}
	if m.selectedTicker != m.rows[len(m.rows)-1].Ticker {
		t.Errorf("down past bottom selected %s", m.selectedTicker)
	}
}

func TestTickFlashesChangedRows(t *testing.T) {
	m := newTestModel(nil)

	evt := m.store.Tick()
	if len(evt.Changed) == 0 {
		t.Fatal("tick changed nothing")
	}
	next, cmd := m.Update(tickMsg(evt))
	m = next.(model)
	if cmd == nil {
		t.Fatal("tick should schedule follow-up commands")
	}
	if !m.flash[evt.Changed[0]] {
		t.Errorf("changed ticker %s not flashing", evt.Changed[0])
	}
	if m.seq != evt.Seq {
		t.Errorf("seq = %d, want %d", m.seq, evt.Seq)
	}

	// A stale timer does not clear a newer flash.
	next, _ = m.Update(flashDoneMsg{seq: evt.Seq - 1})
	m = next.(model)
	if len(m.flash) == 0 {
		t.Error("stale flashDoneMsg cleared the flash")
	}

	next, _ = m.Update(flashDoneMsg{seq: evt.Seq})
	m = next.(model)
	if len(m.flash) != 0 {
		t.Errorf("flash = %v, want cleared", m.flash)
	}
}

func TestDetailPanel(t *testing.T) {
	api := &fakeDetailer{}
	m := newTestModel(api)

	m, cmd := press(t, m, "enter")
	if !m.detailLoading || cmd == nil {
		t.Fatal("enter should start loading the detail")
	}
	next, _ := m.Update(cmd())
	m = next.(model)
	if api.selected != "BTCUSD" {
		t.Errorf("selected %q, want BTCUSD", api.selected)
	}
	if m.detail == nil || m.detailLoading {
		t.Fatalf("detail = %+v loading = %v", m.detail, m.detailLoading)
	}
	if !strings.Contains(m.renderContent(), "1Y") {
		t.Error("detail panel missing range label")
	}

	m, cmd = press(t, m, "2")
	next, _ = m.Update(cmd())
	m = next.(model)
	if len(api.ranges) != 1 || api.ranges[0] != "6m" {
		t.Errorf("ranges = %v, want [6m]", api.ranges)
	}

	m, cmd = press(t, m, "esc")
	if m.detail != nil {
		t.Error("esc should close the panel")
	}
	cmd()
	if !api.closed {
		t.Error("esc should close the server-side detail")
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		prices []float64
		width  int
		want   string
	}{
		{nil, 10, ""},
		{[]float64{1, 2, 3, 4, 5, 6, 7, 8}, 8, "▁▂▃▄▅▆▇█"},
		{[]float64{5, 5, 5}, 10, "▄▄▄"},
		{[]float64{1, 8}, 1, "▄"},
		{[]float64{1, 9, 5}, 2, "▁█"},
	}
	for _, tt := range tests {
		if got := sparkline(tt.prices, tt.width); got != tt.want {
			t.Errorf("sparkline(%v, %d) = %q, want %q", tt.prices, tt.width, got, tt.want)
		}
	}
}

func TestPadOrTrunc(t *testing.T) {
	if got := padOrTrunc("abc", 5); got != "abc  " {
		t.Errorf("pad = %q", got)
	}
	if got := padOrTrunc("abcdef", 3); got != "abc" {
		t.Errorf("trunc = %q", got)
	}
	if got := align("1", 3, true); got != "  1" {
		t.Errorf("align right = %q", got)
	}
	if got := padOrTrunc("x", 0); got != "" {
		t.Errorf("zero width = %q", got)
	}
}
