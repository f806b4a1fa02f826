package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
	"marketpulse/pkg/marketpulse"
)

// Styles.
var (
	tickerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sortedColStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	detailBarStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")) // black on yellow
	highlightBG    = lipgloss.Color("236")                                                                          // dark grey background
	flashBG        = lipgloss.Color("58")                                                                           // olive
)

// hlStyle returns a copy of s with the row background applied: flash wins
// over selection.
func hlStyle(s lipgloss.Style, hl, flash bool) lipgloss.Style {
	switch {
	case flash:
		return s.Background(flashBG)
	case hl:
		return s.Background(highlightBG)
	}
	return s
}

func toneStyle(v float64) lipgloss.Style {
	switch dashboard.Tone(v) {
	case 1:
		return gainStyle
	case -1:
		return lossStyle
	}
	return priceStyle
}

type column struct {
	key   dashboard.SortKey
	width int
	right bool
}

var columns = []column{
	{dashboard.SortName, 24, false},
	{dashboard.SortTicker, 8, false},
	{dashboard.SortCurrentValue, 14, true},
	{dashboard.SortDailyChange, 10, true},
	{dashboard.SortYTDReturn, 10, true},
	{dashboard.SortMarketCap, 12, true},
	{dashboard.SortFiftyTwoWeekHigh, 14, true},
	{dashboard.SortFiftyTwoWeekLow, 14, true},
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	ts := "--:--:--"
	if !m.lastTick.IsZero() {
		ts = m.lastTick.Local().Format("15:04:05")
	}
	headerText := fmt.Sprintf(
		" marketpulse  %s    tick: %d    instruments: %d    sort: %s %s ",
		ts,
		m.seq,
		len(m.rows),
		dashboard.SortKeyLabel(m.sortState.Key),
		m.sortState.Dir.Arrow(),
	)
	if m.syncErr != "" {
		headerText += "   stream lost: " + m.syncErr
	}
	headerBar := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("4")).
		Render(padOrTrunc(headerText, m.width))

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  s sort  r reverse  up/dn select"
	if m.api != nil {
		footerLeft += "  enter detail  1-4 range  esc close"
	}
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerText := footerLeft + strings.Repeat(" ", gap) + footerRight
	footerBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("8")).
		Render(padOrTrunc(footerText, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	var b strings.Builder
	renderHeader(&b, m.sortState)
	for _, inst := range m.rows {
		renderRow(&b, inst, inst.Ticker == m.selectedTicker, m.flash[inst.Ticker])
	}
	if m.detailLoading || m.detail != nil || m.detailErr != "" {
		b.WriteString("\n")
		renderDetail(&b, m.detail, m.detailLoading, m.detailErr, m.width)
	}
	return b.String()
}

func renderHeader(b *strings.Builder, s dashboard.SortState) {
	for _, c := range columns {
		label := dashboard.SortKeyLabel(c.key)
		style := colHeaderStyle
		if c.key == s.Key {
			label += " " + s.Dir.Arrow()
			style = sortedColStyle
		}
		b.WriteString(style.Render(align(label, c.width, c.right)))
		b.WriteString(" ")
	}
	b.WriteString("\n")
}

func renderRow(b *strings.Builder, inst domain.Instrument, hl, flash bool) {
	cells := []struct {
		text  string
		style lipgloss.Style
	}{
		{inst.Name, priceStyle},
		{inst.Ticker, tickerStyle},
		{dashboard.FormatCurrency(inst.CurrentValue), priceStyle},
		{dashboard.FormatPercent(inst.DailyChange), toneStyle(inst.DailyChange)},
		{dashboard.FormatPercent(inst.YTDReturn), toneStyle(inst.YTDReturn)},
		{dashboard.FormatMarketCap(inst.MarketCap), dimStyle},
		{dashboard.FormatCurrency(inst.FiftyTwoWeekHigh), dimStyle},
		{dashboard.FormatCurrency(inst.FiftyTwoWeekLow), dimStyle},
	}
	for i, c := range columns {
		st := hlStyle(cells[i].style, hl, flash)
		b.WriteString(st.Render(align(cells[i].text, c.width, c.right)))
		b.WriteString(hlStyle(lipgloss.NewStyle(), hl, flash).Render(" "))
	}
	b.WriteString("\n")
}

func renderDetail(b *strings.Builder, d *marketpulse.Detail, loading bool, errMsg string, width int) {
	title := " Detail "
	if d != nil && d.Selected != nil {
		title = fmt.Sprintf(" %s (%s)  %s ", d.Selected.Name, d.Selected.Ticker, strings.ToUpper(d.Range))
	}
	if loading {
		title += "  loading..."
	}
	b.WriteString(detailBarStyle.Render(padOrTrunc(title, width)))
	b.WriteString("\n")

	if errMsg != "" {
		b.WriteString(errorStyle.Render("  " + errMsg))
		b.WriteString("\n")
		return
	}
	if d == nil {
		return
	}

	points := make([]domain.HistoricalPoint, len(d.Series))
	prices := make([]float64, len(d.Series))
	for i, p := range d.Series {
		points[i] = domain.HistoricalPoint{Date: p.Date, Price: p.Price}
		prices[i] = p.Price
	}
	g := dashboard.ComputeChart(points, dashboard.ChartWidth, dashboard.ChartHeight)
	if g.Placeholder {
		b.WriteString(dimStyle.Render("  " + dashboard.ChartPlaceholder))
		b.WriteString("\n")
		return
	}

	style := lossStyle
	if g.Positive {
		style = gainStyle
	}
	b.WriteString("  ")
	b.WriteString(style.Render(sparkline(prices, max(width-4, 10))))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s .. %s   low %s   high %s",
		g.FirstDate, g.LastDate, dashboard.FormatCurrency(g.Min), dashboard.FormatCurrency(g.Max))))
	b.WriteString("\n")
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline renders prices as block characters, resampled to at most width
// cells. A flat series renders at mid height.
func sparkline(prices []float64, width int) string {
	if len(prices) == 0 || width <= 0 {
		return ""
	}
	n := min(len(prices), width)
	sampled := make([]float64, n)
	for i := range sampled {
		idx := i * (len(prices) - 1)
		if n > 1 {
			idx /= n - 1
		}
		sampled[i] = prices[idx]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range sampled {
		lo = min(lo, p)
		hi = max(hi, p)
	}

	out := make([]rune, n)
	top := len(sparkLevels) - 1
	for i, p := range sampled {
		level := top / 2
		if hi > lo {
			level = int(math.Round((p - lo) / (hi - lo) * float64(top)))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

func align(s string, width int, right bool) string {
	if !right {
		return padOrTrunc(s, width)
	}
	n := lipgloss.Width(s)
	if n >= width {
		return padOrTrunc(s, width)
	}
	return strings.Repeat(" ", width-n) + s
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	n := len(r)
	if n >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-n)
}
