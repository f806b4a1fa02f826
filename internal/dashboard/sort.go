// Package dashboard holds the presentation logic shared by the web page, the
// TUI and the CLI: the sorted table projection, chart geometry and value
// formatting.
package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"marketpulse/internal/domain"
)

// SortKey names the instrument field a table is ordered by.
type SortKey string

const (
	SortName             SortKey = "name"
	SortTicker           SortKey = "ticker"
	SortCurrentValue     SortKey = "currentValue"
	SortDailyChange      SortKey = "dailyChange"
	SortYTDReturn        SortKey = "ytdReturn"
	SortMarketCap        SortKey = "marketCap"
	SortFiftyTwoWeekHigh SortKey = "fiftyTwoWeekHigh"
	SortFiftyTwoWeekLow  SortKey = "fiftyTwoWeekLow"
)

// SortKeys returns every sort key in column order.
func SortKeys() []SortKey {
	return []SortKey{
		SortName, SortTicker, SortCurrentValue, SortDailyChange,
		SortYTDReturn, SortMarketCap, SortFiftyTwoWeekHigh, SortFiftyTwoWeekLow,
	}
}

// ParseSortKey parses a key case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	for _, k := range SortKeys() {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// SortKeyLabel returns the column header for the given key.
func SortKeyLabel(k SortKey) string {
	switch k {
	case SortName:
		return "Instrument"
	case SortTicker:
		return "Ticker"
	case SortCurrentValue:
		return "Current Value"
	case SortDailyChange:
		return "Daily %"
	case SortYTDReturn:
		return "YTD %"
	case SortMarketCap:
		return "Mkt Cap"
	case SortFiftyTwoWeekHigh:
		return "52W High"
	case SortFiftyTwoWeekLow:
		return "52W Low"
	default:
		return "?"
	}
}

// NextSortKey returns the key after k in column order, wrapping around.
func NextSortKey(k SortKey) SortKey {
	keys := SortKeys()
	for i, kk := range keys {
		if kk == k {
			return keys[(i+1)%len(keys)]
		}
	}
	return keys[0]
}

// Direction is the sort direction.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// ParseDirection accepts "asc"/"ascending" and "desc"/"descending".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// Arrow returns the header indicator for the direction.
func (d Direction) Arrow() string {
	if d == Descending {
		return "▼"
	}
	return "▲"
}

// SortState is the table's current ordering.
type SortState struct {
	Key SortKey   `json:"key"`
	Dir Direction `json:"direction"`
}

// DefaultSort orders by market cap, largest first.
func DefaultSort() SortState {
	return SortState{Key: SortMarketCap, Dir: Descending}
}

// Toggle returns the state after a click on the header for key: the same
// column while ascending flips to descending, anything else sorts ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key == key && s.Dir == Ascending {
		return SortState{Key: key, Dir: Descending}
	}
	return SortState{Key: key, Dir: Ascending}
}

// SortInstruments returns a sorted copy of list. Equal keys keep their input
// order in both directions. list is not modified.
func SortInstruments(list []domain.Instrument, s SortState) []domain.Instrument {
	out := make([]domain.Instrument, len(list))
	copy(out, list)

	cmp := comparator(s.Key)
	if cmp == nil {
		return out
	}
	if s.Dir == Descending {
		sort.SliceStable(out, func(i, j int) bool { return cmp(out[j], out[i]) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return cmp(out[i], out[j]) })
	}
	return out
}

// comparator returns a strict less-than on the field named by k.
func comparator(k SortKey) func(a, b domain.Instrument) bool {
	num := func(f func(domain.Instrument) float64) func(a, b domain.Instrument) bool {
		return func(a, b domain.Instrument) bool { return f(a) < f(b) }
	}
	switch k {
	case SortName:
		return func(a, b domain.Instrument) bool { return a.Name < b.Name }
	case SortTicker:
		return func(a, b domain.Instrument) bool { return a.Ticker < b.Ticker }
	case SortCurrentValue:
		return num(func(i domain.Instrument) float64 { return i.CurrentValue })
	case SortDailyChange:
		return num(func(i domain.Instrument) float64 { return i.DailyChange })
	case SortYTDReturn:
		return num(func(i domain.Instrument) float64 { return i.YTDReturn })
	case SortMarketCap:
		return num(func(i domain.Instrument) float64 { return i.MarketCap })
	case SortFiftyTwoWeekHigh:
		return num(func(i domain.Instrument) float64 { return i.FiftyTwoWeekHigh })
	case SortFiftyTwoWeekLow:
		return num(func(i domain.Instrument) float64 { return i.FiftyTwoWeekLow })
	}
	return nil
}
