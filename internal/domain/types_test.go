package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTypesExist(t *testing.T) {
	inst := Instrument{}
	if inst.Ticker != "" || inst.Name != "" {
		t.Error("expected empty Ticker/Name for zero-value Instrument")
	}
	if inst.CurrentValue != 0 || inst.MarketCap != 0 {
		t.Error("expected zero CurrentValue/MarketCap for zero-value Instrument")
	}

	p := HistoricalPoint{}
	if p.Date != "" || p.Price != 0 {
		t.Error("expected zero HistoricalPoint")
	}

	n := NewsItem{}
	if n.Title != "" || n.URL != "" {
		t.Error("expected zero NewsItem")
	}
}

func TestInstrumentJSONTags(t *testing.T) {
	data, err := json.Marshal(Instrument{Ticker: "SPY", FiftyTwoWeekHigh: 655})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"ticker"`, `"currentValue"`, `"ytdReturn"`, `"dailyChange"`, `"marketCap"`, `"fiftyTwoWeekHigh"`, `"fiftyTwoWeekLow"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("JSON %s missing key %s", data, key)
		}
	}
}

func TestParseChartRange(t *testing.T) {
	tests := []struct {
		in      string
		want    ChartRange
		wantErr bool
	}{
		{"1m", Range1M, false},
		{"6M", Range6M, false},
		{" 1y ", Range1Y, false},
		{"5y", Range5Y, false},
		{"2y", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseChartRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChartRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChartRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAllRangesOrder(t *testing.T) {
	got := AllRanges()
	want := []ChartRange{Range1M, Range6M, Range1Y, Range5Y}
	if len(got) != len(want) {
		t.Fatalf("AllRanges() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AllRanges()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if Range5Y.Label() != "5Y" {
		t.Errorf("Label() = %q, want 5Y", Range5Y.Label())
	}
}
