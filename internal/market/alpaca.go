package market

import (
	"context"
	"fmt"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// AlpacaWatchlist reads watchlist symbols from an Alpaca trading account.
type AlpacaWatchlist struct {
	client *alpacaapi.Client
}

// NewAlpacaWatchlist creates a WatchlistSource backed by the Alpaca API.
func NewAlpacaWatchlist(apiKey, apiSecret, baseURL string) *AlpacaWatchlist {
	return &AlpacaWatchlist{
		client: alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// WatchlistSymbols returns the symbols of the watchlist with the given name.
// The Alpaca client does not take a context; ctx is checked before each call.
func (a *AlpacaWatchlist) WatchlistSymbols(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lists, err := a.client.GetWatchlists()
	if err != nil {
		return nil, err
	}
	for _, w := range lists {
		if w.Name != name {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// GetWatchlists doesn't include assets; fetch the full watchlist.
		full, err := a.client.GetWatchlist(w.ID)
		if err != nil {
			return nil, err
		}
		syms := make([]string, 0, len(full.Assets))
		for _, asset := range full.Assets {
			syms = append(syms, asset.Symbol)
		}
		return normalizeSymbols(syms), nil
	}
	return nil, fmt.Errorf("watchlist %q not found", name)
}
