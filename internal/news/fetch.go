// Package news fetches per-symbol headlines from public feeds: Alpaca news
// and Google News RSS. They complement the generated market-wide news panel.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"marketpulse/internal/domain"
	"marketpulse/internal/query"
)

// Source returns up to limit recent headlines for symbol.
type Source interface {
	Name() string
	Headlines(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error)
}

// --- HTTP client ---

var httpClient = &http.Client{Timeout: 10 * time.Second}

// --- Alpaca ---

// Alpaca reads headlines from the Alpaca marketdata news API.
type Alpaca struct {
	client *marketdata.Client
}

// NewAlpaca creates an Alpaca news source. baseURL overrides the data API
// endpoint when non-empty.
func NewAlpaca(apiKey, apiSecret, baseURL string) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &Alpaca{client: marketdata.NewClient(opts)}
}

func (a *Alpaca) Name() string { return "alpaca" }

// Headlines fetches the newest articles tagged with symbol.
func (a *Alpaca) Headlines(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	type result struct {
		news []marketdata.News
		err  error
	}
	done := make(chan result, 1)
	go func() {
		n, err := a.client.GetNews(marketdata.GetNewsRequest{
			Symbols:    []string{symbol},
			TotalLimit: limit,
			Sort:       marketdata.SortDesc,
		})
		done <- result{n, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("alpaca news for %s: %w", symbol, res.err)
	}

	items := make([]domain.NewsItem, 0, len(res.news))
	for _, n := range res.news {
		if !query.ValidLink(n.URL) {
			continue
		}
		summary := n.Summary
		if summary == "" && n.Content != "" {
			summary = ExtractSymbolContent(n.Content, symbol)
		}
		// marketdata.News carries no publisher field; attribute to alpaca.
		source := "alpaca"
		items = append(items, domain.NewsItem{
			Title:       n.Headline,
			Source:      source,
			URL:         n.URL,
			PublishedAt: n.CreatedAt.UTC().Format(time.RFC3339),
			Summary:     summary,
		})
	}
	return items, nil
}

// --- Google News RSS ---

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
	Source  string `xml:"source"`
}

// GoogleRSS reads the Google News RSS search feed.
type GoogleRSS struct {
	BaseURL string // defaults to https://news.google.com
}

// NewGoogleRSS creates a Google News source.
func NewGoogleRSS() *GoogleRSS {
	return &GoogleRSS{BaseURL: "https://news.google.com"}
}

func (g *GoogleRSS) Name() string { return "google" }

// Headlines searches the feed for "<symbol> stock".
func (g *GoogleRSS) Headlines(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	q := url.QueryEscape(symbol + " stock")
	u := strings.TrimRight(g.BaseURL, "/") + "/rss/search?q=" + q + "&hl=en-US&gl=US&ceid=US:en"

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google news for %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google news for %s: status %d", symbol, resp.StatusCode)
	}

	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, fmt.Errorf("decoding google news feed: %w", err)
	}

	var items []domain.NewsItem
	for _, item := range rss.Channel.Items {
		if !query.ValidLink(item.Link) {
			continue
		}
		t, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			t, err = time.Parse(time.RFC1123, item.PubDate)
			if err != nil {
				continue
			}
		}
		headline := item.Title
		source := item.Source
		if idx := strings.LastIndex(headline, " - "); idx > 0 {
			if source == "" {
				source = headline[idx+3:]
			}
			headline = headline[:idx]
		}
		if source == "" {
			source = "Google News"
		}
		items = append(items, domain.NewsItem{
			Title:       headline,
			Source:      source,
			URL:         item.Link,
			PublishedAt: t.UTC().Format(time.RFC3339),
			Summary:     query.StripHTML(item.Desc),
		})
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

// --- Merging ---

// Collect queries every source concurrently and merges the results newest
// first, dropping repeated titles. A failing source is logged and skipped;
// an error is returned only when every source fails.
func Collect(ctx context.Context, sources []Source, symbol string, limit int, log *slog.Logger) ([]domain.NewsItem, error) {
	results := make([][]domain.NewsItem, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			items, err := src.Headlines(gctx, symbol, limit)
			if err != nil {
				log.Warn("headline source failed", "source", src.Name(), "symbol", symbol, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	g.Wait()

	var merged []domain.NewsItem
	seen := make(map[string]bool)
	failed := 0
	for i := range sources {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, it := range results[i] {
			key := strings.ToLower(strings.TrimSpace(it.Title))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, it)
		}
	}
	if len(sources) > 0 && failed == len(sources) {
		return nil, fmt.Errorf("all headline sources failed for %s: %w", symbol, errs[0])
	}

	// RFC3339 UTC strings order chronologically.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt > merged[j].PublishedAt
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// --- HTML helpers ---

var htmlParaRe = regexp.MustCompile(`(?i)</?(p|br|div|li|h[1-6])\b[^>]*>`)

// ExtractSymbolContent extracts paragraphs mentioning the symbol from HTML content.
// Falls back to full stripped HTML if no paragraphs mention the symbol.
func ExtractSymbolContent(rawHTML, symbol string) string {
	chunks := htmlParaRe.Split(rawHTML, -1)
	var matched []string
	upper := strings.ToUpper(symbol)
	for _, chunk := range chunks {
		plain := query.StripHTML(chunk)
		if plain == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(plain), upper) {
			matched = append(matched, plain)
		}
	}
	if len(matched) > 0 {
		return strings.Join(matched, " ")
	}
	return query.StripHTML(rawHTML)
}
