package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"marketpulse/internal/domain"
)

// DefaultInstruments returns the built-in instrument list the dashboard starts
// with when no seed is configured.
func DefaultInstruments() []domain.Instrument {
	return []domain.Instrument{
		{Name: "Nifty 50 Index (India)", Ticker: "INDEXNSE:NIFTY_50", CurrentValue: 24973.10, YTDReturn: 5.62, DailyChange: 0.25, MarketCap: 0, FiftyTwoWeekHigh: 25000, FiftyTwoWeekLow: 20000},
		{Name: "S&P 500 Index (US Largecap)", Ticker: "SPY", CurrentValue: 652.21, YTDReturn: 11.28, DailyChange: -0.10, MarketCap: 503_000_000_000, FiftyTwoWeekHigh: 655, FiftyTwoWeekLow: 500},
		{Name: "Vanguard Total Stock Market", Ticker: "VTI", CurrentValue: 321.80, YTDReturn: 11.04, DailyChange: -0.15, MarketCap: 1_600_000_000_000, FiftyTwoWeekHigh: 325, FiftyTwoWeekLow: 250},
		{Name: "Nasdaq 100 Index (US Tech heavy)", Ticker: "QQQ", CurrentValue: 580.70, YTDReturn: 13.59, DailyChange: 0.50, MarketCap: 275_000_000_000, FiftyTwoWeekHigh: 582, FiftyTwoWeekLow: 450},
		{Name: "Russell 2000 Index (US Smallcap)", Ticker: "IWM", CurrentValue: 236.43, YTDReturn: 7.00, DailyChange: 1.12, MarketCap: 70_000_000_000, FiftyTwoWeekHigh: 240, FiftyTwoWeekLow: 190},
		{Name: "US High Growth ETF", Ticker: "ARKK", CurrentValue: 7.94, YTDReturn: 34.12, DailyChange: -2.5, MarketCap: 6_000_000_000, FiftyTwoWeekHigh: 10, FiftyTwoWeekLow: 5},
		{Name: "Emerging Market Equity", Ticker: "EEM", CurrentValue: 51.54, YTDReturn: 23.24, DailyChange: 0.88, MarketCap: 25_000_000_000, FiftyTwoWeekHigh: 52, FiftyTwoWeekLow: 40},
		{Name: "US Total Bond Market", Ticker: "BND", CurrentValue: 74.50, YTDReturn: 3.60, DailyChange: 0.05, MarketCap: 105_000_000_000, FiftyTwoWeekHigh: 76, FiftyTwoWeekLow: 70},
		{Name: "Gold in USD", Ticker: "GLD", CurrentValue: 335.26, YTDReturn: 38.46, DailyChange: 0.75, MarketCap: 62_000_000_000, FiftyTwoWeekHigh: 340, FiftyTwoWeekLow: 250},
		{Name: "Bitcoin in USD", Ticker: "BTCUSD", CurrentValue: 113963.32, YTDReturn: 23.36, DailyChange: -1.2, MarketCap: 2_200_000_000_000, FiftyTwoWeekHigh: 120000, FiftyTwoWeekLow: 50000},
	}
}

// WatchlistSource lists the symbols of a named watchlist.
type WatchlistSource interface {
	WatchlistSymbols(ctx context.Context, name string) ([]string, error)
}

// LookupFunc resolves a free-text query to an instrument.
type LookupFunc func(ctx context.Context, query string) (domain.Instrument, error)

// maxSeedLookups bounds concurrent lookups while seeding.
const maxSeedLookups = 4

// SeedFromWatchlist resolves every symbol of the named watchlist through
// lookup and adds the results to the store in watchlist order. Symbols that
// fail to resolve or are already tracked are logged and skipped. It returns
// the number of instruments added.
func SeedFromWatchlist(ctx context.Context, s *Store, src WatchlistSource, name string, lookup LookupFunc, log *slog.Logger) (int, error) {
	symbols, err := src.WatchlistSymbols(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("listing watchlist %q: %w", name, err)
	}

	type result struct {
		inst domain.Instrument
		ok   bool
	}
	results := make([]result, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSeedLookups)
	for i, sym := range symbols {
		g.Go(func() error {
			inst, err := lookup(gctx, sym)
			if err != nil {
				log.Warn("seeding instrument", "symbol", sym, "error", err)
				return nil // skip unresolved symbols
			}
			results[i] = result{inst: inst, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	added := 0
	for i, r := range results {
		if !r.ok {
			continue
		}
		if err := s.Add(r.inst); err != nil {
			log.Info("skipping watchlist symbol", "symbol", symbols[i], "error", err)
			continue
		}
		added++
	}
	return added, nil
}

// normalizeSymbols upper-cases, trims and de-duplicates symbols, keeping the
// first occurrence.
func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
