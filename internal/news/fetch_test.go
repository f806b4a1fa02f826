package news

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketpulse/internal/domain"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<item>
  <title>Apple beats estimates - Reuters</title>
  <link>https://example.com/a</link>
  <pubDate>Tue, 07 May 2024 14:30:00 GMT</pubDate>
  <description>&lt;a href="x"&gt;Apple&lt;/a&gt; results &amp;amp; guidance</description>
</item>
<item>
  <title>Bad date item</title>
  <link>https://example.com/c</link>
  <pubDate>yesterday</pubDate>
</item>
<item>
  <title>Click here - Spam</title>
  <link>javascript:alert(document.cookie)</link>
  <pubDate>Tue, 07 May 2024 12:00:00 GMT</pubDate>
</item>
<item>
  <title>Apple supplier update</title>
  <link>https://example.com/b</link>
  <pubDate>Mon, 06 May 2024 09:00:00 +0000</pubDate>
  <source url="https://wsj.com">WSJ</source>
</item>
</channel></rss>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGoogleRSSHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "AAPL stock" {
			t.Errorf("q = %q", got)
		}
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	items, err := (&GoogleRSS{BaseURL: srv.URL}).Headlines(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (bad date and script link skipped)", len(items))
	}
	for _, it := range items {
		if !strings.HasPrefix(it.URL, "https://") {
			t.Errorf("URL = %q, want an https link", it.URL)
		}
	}
	first := items[0]
	if first.Title != "Apple beats estimates" || first.Source != "Reuters" {
		t.Errorf("first = %+v", first)
	}
	if first.PublishedAt != "2024-05-07T14:30:00Z" {
		t.Errorf("PublishedAt = %q", first.PublishedAt)
	}
	if first.Summary != "Apple results & guidance" {
		t.Errorf("Summary = %q", first.Summary)
	}
	if items[1].Source != "WSJ" {
		t.Errorf("second source = %q, want WSJ", items[1].Source)
	}
}

func TestGoogleRSSLimitAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()
	items, err := (&GoogleRSS{BaseURL: srv.URL}).Headlines(context.Background(), "AAPL", 1)
	if err != nil || len(items) != 1 {
		t.Fatalf("Headlines(limit 1) = %d items, %v", len(items), err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	if _, err := (&GoogleRSS{BaseURL: down.URL}).Headlines(context.Background(), "AAPL", 1); err == nil {
		t.Fatal("expected error on 503")
	}
}

type fakeSource struct {
	name  string
	items []domain.NewsItem
	err   error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Headlines(context.Context, string, int) ([]domain.NewsItem, error) {
	return f.items, f.err
}

func TestCollectMergesNewestFirst(t *testing.T) {
	a := fakeSource{name: "a", items: []domain.NewsItem{
		{Title: "Old", PublishedAt: "2024-05-01T00:00:00Z"},
		{Title: "Shared", PublishedAt: "2024-05-03T00:00:00Z"},
	}}
	b := fakeSource{name: "b", items: []domain.NewsItem{
		{Title: "shared ", PublishedAt: "2024-05-03T00:00:00Z"},
		{Title: "New", PublishedAt: "2024-05-04T00:00:00Z"},
	}}
	broken := fakeSource{name: "broken", err: errors.New("down")}

	got, err := Collect(context.Background(), []Source{a, b, broken}, "AAPL", 10, testLogger())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var titles []string
	for _, it := range got {
		titles = append(titles, it.Title)
	}
	if strings.Join(titles, ",") != "New,Shared,Old" {
		t.Errorf("titles = %v, want [New Shared Old]", titles)
	}

	got, _ = Collect(context.Background(), []Source{a, b}, "AAPL", 2, testLogger())
	if len(got) != 2 {
		t.Errorf("limit 2 returned %d items", len(got))
	}
}

func TestCollectAllFail(t *testing.T) {
	srcs := []Source{fakeSource{name: "x", err: errors.New("boom")}}
	if _, err := Collect(context.Background(), srcs, "AAPL", 5, testLogger()); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestExtractSymbolContent(t *testing.T) {
	raw := `<p>Markets rallied.</p><p>AAPL rose 2%.</p><div>Bonds fell.</div>`
	if got := ExtractSymbolContent(raw, "aapl"); got != "AAPL rose 2%." {
		t.Errorf("ExtractSymbolContent = %q", got)
	}
	if got := ExtractSymbolContent(raw, "MSFT"); got != "Markets rallied. AAPL rose 2%. Bonds fell." {
		t.Errorf("fallback = %q", got)
	}
}
