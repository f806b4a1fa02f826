package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
	"marketpulse/internal/store"
	"marketpulse/pkg/marketpulse"
)

const version = "0.1.0"

func main() {
	server := flag.String("server", envOr("MARKETPULSE_URL", "http://localhost:8080"), "marketpulse-server base URL")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: marketpulse-cli [-server URL] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  table [key] [asc|desc]     Show the instrument table\n")
		fmt.Fprintf(os.Stderr, "  search <query>             Look up a stock or index\n")
		fmt.Fprintf(os.Stderr, "  history <ticker> [range]   Show price history (1m, 6m, 1y, 5y)\n")
		fmt.Fprintf(os.Stderr, "  news [refresh]             Show financial headlines\n")
		fmt.Fprintf(os.Stderr, "  headlines <ticker>         Show feed headlines for a ticker\n")
		fmt.Fprintf(os.Stderr, "  queries [limit]            Show recent upstream queries\n")
		fmt.Fprintf(os.Stderr, "  archive <dir>              Summarize tick archive files\n")
		fmt.Fprintf(os.Stderr, "\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	c := marketpulse.NewClient(*server)

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("marketpulse-cli %s\n", version)
	case "table":
		err = runTable(ctx, c, args[1:])
	case "search":
		err = runSearch(ctx, c, args[1:])
	case "history":
		err = runHistory(ctx, c, args[1:])
	case "news":
		err = runNews(ctx, c, args[1:])
	case "headlines":
		err = runHeadlines(ctx, c, args[1:])
	case "queries":
		err = runQueries(ctx, c, args[1:])
	case "archive":
		err = runArchive(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func runTable(ctx context.Context, c *marketpulse.Client, args []string) error {
	var key, dir string
	if len(args) > 0 {
		k, err := dashboard.ParseSortKey(args[0])
		if err != nil {
			return err
		}
		key = string(k)
	}
	if len(args) > 1 {
		dir = args[1]
	}
	tbl, err := c.Instruments(ctx, key, dir)
	if err != nil {
		return err
	}

	header := make([]string, 0, len(dashboard.SortKeys()))
	for _, k := range dashboard.SortKeys() {
		label := dashboard.SortKeyLabel(k)
		if string(k) == tbl.Sort.Key {
			label += " " + dashboard.Direction(tbl.Sort.Direction).Arrow()
		}
		header = append(header, label)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	for _, r := range tbl.Rows {
		table.Append([]string{
			r.Name, r.Ticker, r.ValueText, r.DailyText, r.YTDText,
			r.MarketCapText, r.HighText, r.LowText,
		})
	}
	table.Render()
	fmt.Printf("tick %d\n", tbl.Seq)
	return nil
}

func runSearch(ctx context.Context, c *marketpulse.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search: query required")
	}
	res, err := c.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if res.Result == nil {
		return fmt.Errorf("%s", res.Error)
	}
	printInstrument(res.Result)
	return nil
}

func runHistory(ctx context.Context, c *marketpulse.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("history: ticker required")
	}
	d, err := c.Select(ctx, args[0])
	if err != nil {
		return err
	}
	if len(args) > 1 && !strings.EqualFold(args[1], d.Range) {
		if d, err = c.SetRange(ctx, args[1]); err != nil {
			return err
		}
	}
	if d.Error != "" {
		return fmt.Errorf("%s", d.Error)
	}

	points := make([]domain.HistoricalPoint, len(d.Series))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Price"})
	for i, p := range d.Series {
		points[i] = domain.HistoricalPoint{Date: p.Date, Price: p.Price}
		table.Append([]string{p.Date, dashboard.FormatCurrency(p.Price)})
	}
	table.Render()

	g := dashboard.ComputeChart(points, dashboard.ChartWidth, dashboard.ChartHeight)
	if g.Placeholder {
		fmt.Println(dashboard.ChartPlaceholder)
		return nil
	}
	trend := "down"
	if g.Positive {
		trend = "up"
	}
	fmt.Printf("%s %s: %d points, %s to %s, low %s high %s, trend %s\n",
		d.Selected.Ticker, strings.ToUpper(d.Range), len(d.Series), g.FirstDate, g.LastDate,
		dashboard.FormatCurrency(g.Min), dashboard.FormatCurrency(g.Max), trend)
	return nil
}

func runNews(ctx context.Context, c *marketpulse.Client, args []string) error {
	refresh := len(args) > 0 && args[0] == "refresh"
	n, err := c.News(ctx, refresh)
	if err != nil {
		return err
	}
	if n.Error != "" {
		fmt.Fprintln(os.Stderr, n.Error)
	}
	for _, item := range n.Items {
		fmt.Printf("%s\n  %s | %s\n  %s\n  %s\n\n", item.Title, item.Source, item.PublishedAt, item.Summary, item.URL)
	}
	return nil
}

func runHeadlines(ctx context.Context, c *marketpulse.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("headlines: ticker required")
	}
	items, err := c.Headlines(ctx, args[0], 15)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Published", "Source", "Title"})
	table.SetColWidth(80)
	for _, it := range items {
		published := it.PublishedAt
		if t, err := time.Parse(time.RFC3339, it.PublishedAt); err == nil {
			published = humanize.Time(t)
		}
		table.Append([]string{published, it.Source, it.Title})
	}
	table.Render()
	return nil
}

func runQueries(ctx context.Context, c *marketpulse.Client, args []string) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}
	entries, err := c.Queries(ctx, limit)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Started", "Kind", "Ident", "Duration", "OK", "Error"})
	for _, e := range entries {
		table.Append([]string{
			humanize.Time(e.StartedAt), e.Kind, e.Ident,
			(time.Duration(e.DurationMS) * time.Millisecond).String(),
			strconv.FormatBool(e.OK), e.Error,
		})
	}
	table.Render()
	return nil
}

func runArchive(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("archive: directory required")
	}
	paths, err := store.ListArchives(args[0])
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"File", "Size", "Rows", "Ticks", "First", "Last"})
	for _, p := range paths {
		recs, err := store.ReadArchive(p)
		if err != nil {
			return err
		}
		var size uint64
		if fi, err := os.Stat(p); err == nil {
			size = uint64(fi.Size())
		}
		ticks := map[int64]bool{}
		var first, last int64
		for i, r := range recs {
			ticks[r.Seq] = true
			if i == 0 || r.Time < first {
				first = r.Time
			}
			if r.Time > last {
				last = r.Time
			}
		}
		table.Append([]string{
			filepath.Base(p), humanize.Bytes(size), humanize.Comma(int64(len(recs))),
			strconv.Itoa(len(ticks)), formatMillis(first), formatMillis(last),
		})
	}
	table.Render()
	return nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.DateTime)
}

func printInstrument(inst *marketpulse.Instrument) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.AppendBulk([][]string{
		{"Name", inst.Name},
		{"Ticker", inst.Ticker},
		{"Current Value", dashboard.FormatCurrency(inst.CurrentValue)},
		{"Daily %", dashboard.FormatPercent(inst.DailyChange)},
		{"YTD %", dashboard.FormatPercent(inst.YTDReturn)},
		{"Mkt Cap", dashboard.FormatMarketCap(inst.MarketCap)},
		{"52W High", dashboard.FormatCurrency(inst.FiftyTwoWeekHigh)},
		{"52W Low", dashboard.FormatCurrency(inst.FiftyTwoWeekLow)},
	})
	table.Render()
}
