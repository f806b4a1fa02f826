package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketpulse/internal/domain"
)

// Wire shapes use pointers so a missing field can be told apart from a zero.

type stockWire struct {
	Name             *string  `json:"name"`
	Ticker           *string  `json:"ticker"`
	CurrentValue     *float64 `json:"currentValue"`
	YTDReturn        *float64 `json:"ytdReturn"`
	DailyChange      *float64 `json:"dailyChange"`
	MarketCap        *float64 `json:"marketCap"`
	FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow"`
}

type pointWire struct {
	Date  *string  `json:"date"`
	Price *float64 `json:"price"`
}

type newsWire struct {
	Title       *string `json:"title"`
	Source      *string `json:"source"`
	URL         *string `json:"url"`
	PublishedAt *string `json:"publishedAt"`
	Summary     *string `json:"summary"`
}

// decode unmarshals text into v, mapping any JSON error to ErrParse.
func decode(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return parseErrorf("%v", err)
	}
	return nil
}

// requireString checks that a string field is present and non-blank.
func requireString(field string, v *string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("missing field %q", field)
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", fmt.Errorf("empty field %q", field)
	}
	return s, nil
}

// requireNumber checks that a number field is present.
func requireNumber(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("missing field %q", field)
	}
	return *v, nil
}

// parseStock validates a single-instrument response.
func parseStock(text string) (domain.Instrument, error) {
	var w stockWire
	if err := decode(text, &w); err != nil {
		return domain.Instrument{}, err
	}

	var (
		inst domain.Instrument
		err  error
	)
	if inst.Name, err = requireString("name", w.Name); err != nil {
		return domain.Instrument{}, parseErrorf("%v", err)
	}
	if inst.Ticker, err = requireString("ticker", w.Ticker); err != nil {
		return domain.Instrument{}, parseErrorf("%v", err)
	}
	nums := []struct {
		field string
		src   *float64
		dst   *float64
	}{
		{"currentValue", w.CurrentValue, &inst.CurrentValue},
		{"ytdReturn", w.YTDReturn, &inst.YTDReturn},
		{"dailyChange", w.DailyChange, &inst.DailyChange},
		{"marketCap", w.MarketCap, &inst.MarketCap},
		{"fiftyTwoWeekHigh", w.FiftyTwoWeekHigh, &inst.FiftyTwoWeekHigh},
		{"fiftyTwoWeekLow", w.FiftyTwoWeekLow, &inst.FiftyTwoWeekLow},
	}
	for _, n := range nums {
		if *n.dst, err = requireNumber(n.field, n.src); err != nil {
			return domain.Instrument{}, parseErrorf("%v", err)
		}
	}

	inst.Name = StripHTML(inst.Name)
	inst.Ticker = strings.ToUpper(inst.Ticker)
	return inst, nil
}

// parseDate accepts YYYY-MM-DD, or an RFC 3339 timestamp reduced to its date.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parseHistory validates a historical series and returns it sorted strictly
// ascending by date. Two points on the same date are a parse error.
func parseHistory(text string) ([]domain.HistoricalPoint, error) {
	var ws []pointWire
	if err := decode(text, &ws); err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, parseErrorf("expected an array of points")
	}

	type dated struct {
		t time.Time
		p domain.HistoricalPoint
	}
	pts := make([]dated, 0, len(ws))
	for i, w := range ws {
		ds, err := requireString("date", w.Date)
		if err != nil {
			return nil, parseErrorf("point %d: %v", i, err)
		}
		price, err := requireNumber("price", w.Price)
		if err != nil {
			return nil, parseErrorf("point %d: %v", i, err)
		}
		t, err := parseDate(ds)
		if err != nil {
			return nil, parseErrorf("point %d: %v", i, err)
		}
		pts = append(pts, dated{t: t, p: domain.HistoricalPoint{Date: t.Format(domain.DateLayout), Price: price}})
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })

	out := make([]domain.HistoricalPoint, len(pts))
	for i := range pts {
		if i > 0 && pts[i].t.Equal(pts[i-1].t) {
			return nil, parseErrorf("duplicate date %s", pts[i].p.Date)
		}
		out[i] = pts[i].p
	}
	return out, nil
}

// publishedLayouts are the timestamp forms accepted for publishedAt.
var publishedLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", domain.DateLayout}

// parseNews validates a news digest. Order is preserved.
func parseNews(text string) ([]domain.NewsItem, error) {
	var ws []newsWire
	if err := decode(text, &ws); err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, parseErrorf("expected an array of articles")
	}

	items := make([]domain.NewsItem, 0, len(ws))
	for i, w := range ws {
		var (
			item domain.NewsItem
			err  error
		)
		fields := []struct {
			name string
			src  *string
			dst  *string
		}{
			{"title", w.Title, &item.Title},
			{"source", w.Source, &item.Source},
			{"url", w.URL, &item.URL},
			{"publishedAt", w.PublishedAt, &item.PublishedAt},
			{"summary", w.Summary, &item.Summary},
		}
		for _, f := range fields {
			if *f.dst, err = requireString(f.name, f.src); err != nil {
				return nil, parseErrorf("article %d: %v", i, err)
			}
		}
		if !ValidLink(item.URL) {
			return nil, parseErrorf("article %d: url %q is not an http(s) link", i, item.URL)
		}
		if !validTimestamp(item.PublishedAt) {
			return nil, parseErrorf("article %d: invalid publishedAt %q", i, item.PublishedAt)
		}
		item.Title = StripHTML(item.Title)
		item.Source = StripHTML(item.Source)
		item.Summary = StripHTML(item.Summary)
		items = append(items, item)
	}
	return items, nil
}

func validTimestamp(s string) bool {
	for _, layout := range publishedLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
