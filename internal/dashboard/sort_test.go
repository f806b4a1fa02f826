package dashboard

import (
	"testing"

	"marketpulse/internal/domain"
)

func tickers(list []domain.Instrument) []string {
	out := make([]string, len(list))
	for i, inst := range list {
		out[i] = inst.Ticker
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var sample = []domain.Instrument{
	{Name: "Gold", Ticker: "GLD", CurrentValue: 215.3, DailyChange: 0.5, MarketCap: 6e10},
	{Name: "Bonds", Ticker: "BND", CurrentValue: 72.1, DailyChange: -0.1, MarketCap: 1e11},
	{Name: "Nifty", Ticker: "NIFTY_50", CurrentValue: 22000, DailyChange: 0.5, MarketCap: 0},
	{Name: "S&P 500", Ticker: "SPY", CurrentValue: 510.2, DailyChange: 1.2, MarketCap: 5e11},
}

func TestDefaultSort(t *testing.T) {
	got := tickers(SortInstruments(sample, DefaultSort()))
	want := []string{"SPY", "BND", "GLD", "NIFTY_50"}
	if !equalStrings(got, want) {
		t.Errorf("default order = %v, want %v", got, want)
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	before := tickers(sample)
	SortInstruments(sample, SortState{Key: SortCurrentValue, Dir: Ascending})
	if !equalStrings(tickers(sample), before) {
		t.Errorf("input reordered: %v", tickers(sample))
	}
}

func TestSortTwiceReverses(t *testing.T) {
	for _, key := range []SortKey{SortCurrentValue, SortMarketCap, SortTicker, SortName} {
		s := DefaultSort()
		if key == SortMarketCap {
			s = SortState{Key: SortTicker, Dir: Ascending}
		}
		s = s.Toggle(key)
		if s.Dir != Ascending {
			t.Fatalf("%s: first click dir = %s, want ascending", key, s.Dir)
		}
		first := tickers(SortInstruments(sample, s))

		s = s.Toggle(key)
		if s.Dir != Descending {
			t.Fatalf("%s: second click dir = %s, want descending", key, s.Dir)
		}
		second := tickers(SortInstruments(sample, s))

		for i := range first {
			if first[i] != second[len(second)-1-i] {
				t.Errorf("%s: second sort %v is not the reverse of %v", key, second, first)
				break
			}
		}
	}
}

func TestSortStableForEqualKeys(t *testing.T) {
	// GLD and NIFTY_50 share dailyChange 0.5; GLD comes first in the input.
	asc := tickers(SortInstruments(sample, SortState{Key: SortDailyChange, Dir: Ascending}))
	if want := []string{"BND", "GLD", "NIFTY_50", "SPY"}; !equalStrings(asc, want) {
		t.Errorf("ascending = %v, want %v", asc, want)
	}
	desc := tickers(SortInstruments(sample, SortState{Key: SortDailyChange, Dir: Descending}))
	if want := []string{"SPY", "GLD", "NIFTY_50", "BND"}; !equalStrings(desc, want) {
		t.Errorf("descending = %v, want %v", desc, want)
	}
}

func TestToggle(t *testing.T) {
	s := SortState{Key: SortMarketCap, Dir: Descending}
	if got := s.Toggle(SortMarketCap); got.Dir != Ascending {
		t.Errorf("descending same key -> %s, want ascending", got.Dir)
	}
	if got := s.Toggle(SortTicker); got != (SortState{Key: SortTicker, Dir: Ascending}) {
		t.Errorf("different key -> %+v", got)
	}
	s = SortState{Key: SortTicker, Dir: Ascending}
	if got := s.Toggle(SortTicker); got.Dir != Descending {
		t.Errorf("ascending same key -> %s, want descending", got.Dir)
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey("MARKETCAP"); err != nil || k != SortMarketCap {
		t.Errorf("ParseSortKey(MARKETCAP) = %q, %v", k, err)
	}
	if _, err := ParseSortKey("volume"); err == nil {
		t.Error("ParseSortKey(volume) should fail")
	}
	if d, err := ParseDirection("desc"); err != nil || d != Descending {
		t.Errorf("ParseDirection(desc) = %q, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("ParseDirection(sideways) should fail")
	}
}

func TestNextSortKeyWraps(t *testing.T) {
	keys := SortKeys()
	if got := NextSortKey(keys[len(keys)-1]); got != keys[0] {
		t.Errorf("NextSortKey(last) = %s, want %s", got, keys[0])
	}
	if got := NextSortKey(SortName); got != SortTicker {
		t.Errorf("NextSortKey(name) = %s", got)
	}
	for _, k := range keys {
		if SortKeyLabel(k) == "?" {
			t.Errorf("no label for %s", k)
		}
	}
}
