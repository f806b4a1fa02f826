package dashboard

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	"marketpulse/internal/domain"
)

// Canvas defaults and plot margins.
const (
	ChartWidth  = 800
	ChartHeight = 400

	marginTop    = 20
	marginRight  = 20
	marginBottom = 30
	marginLeft   = 50
)

// Stroke colors and gradient ids for rising and falling series.
const (
	ColorPositive = "#4ade80"
	ColorNegative = "#f87171"

	gradientPositive = "chart-gradient-positive"
	gradientNegative = "chart-gradient-negative"
	labelColor       = "#9ca3af"
)

// ChartPlaceholder is shown instead of a chart for series shorter than two
// points.
const ChartPlaceholder = "Not enough data to display chart."

// ChartPoint is a point in plot coordinates, relative to the inner area.
type ChartPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChartGeometry is everything needed to draw a line chart of a series.
type ChartGeometry struct {
	Width       float64      `json:"width"`
	Height      float64      `json:"height"`
	InnerWidth  float64      `json:"innerWidth"`
	InnerHeight float64      `json:"innerHeight"`
	Placeholder bool         `json:"placeholder"`
	Points      []ChartPoint `json:"points,omitempty"`
	Stroke      string       `json:"stroke,omitempty"` // SVG path data of the line
	Area        string       `json:"area,omitempty"`   // SVG path data closed to the baseline
	Positive    bool         `json:"positive"`
	Color       string       `json:"color,omitempty"`
	GradientID  string       `json:"gradientId,omitempty"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	FirstDate   string       `json:"firstDate,omitempty"`
	LastDate    string       `json:"lastDate,omitempty"`
}

// ComputeChart lays out points on a width x height canvas. x is spaced
// uniformly by index; y maps the minimum price to the bottom of the plot and
// the maximum to the top, or the middle when every price is equal. Fewer
// than two points yield a placeholder with no geometry.
func ComputeChart(points []domain.HistoricalPoint, width, height float64) ChartGeometry {
	g := ChartGeometry{
		Width:       width,
		Height:      height,
		InnerWidth:  width - marginLeft - marginRight,
		InnerHeight: height - marginTop - marginBottom,
	}
	if len(points) < 2 {
		g.Placeholder = true
		return g
	}

	g.Min, g.Max = points[0].Price, points[0].Price
	for _, p := range points[1:] {
		g.Min = min(g.Min, p.Price)
		g.Max = max(g.Max, p.Price)
	}

	g.Points = make([]ChartPoint, len(points))
	var b strings.Builder
	for i, p := range points {
		pt := ChartPoint{X: g.x(i, len(points)), Y: g.y(p.Price)}
		g.Points[i] = pt
		if i == 0 {
			b.WriteByte('M')
		} else {
			b.WriteString(" L")
		}
		b.WriteString(num(pt.X))
		b.WriteByte(',')
		b.WriteString(num(pt.Y))
	}
	g.Stroke = b.String()
	g.Area = fmt.Sprintf("%s V%s L%s,%s Z", g.Stroke, num(g.InnerHeight), num(g.Points[0].X), num(g.InnerHeight))

	g.Positive = points[len(points)-1].Price >= points[0].Price
	if g.Positive {
		g.Color, g.GradientID = ColorPositive, gradientPositive
	} else {
		g.Color, g.GradientID = ColorNegative, gradientNegative
	}
	g.FirstDate = points[0].Date
	g.LastDate = points[len(points)-1].Date
	return g
}

func (g ChartGeometry) x(i, n int) float64 {
	return float64(i) / float64(n-1) * g.InnerWidth
}

func (g ChartGeometry) y(price float64) float64 {
	if g.Max == g.Min {
		return g.InnerHeight / 2
	}
	return g.InnerHeight - (price-g.Min)/(g.Max-g.Min)*g.InnerHeight
}

// RenderSVG writes g as a standalone SVG document.
func RenderSVG(w io.Writer, g ChartGeometry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s">`, num(g.Width), num(g.Height))

	if g.Placeholder {
		fmt.Fprintf(bw, `<text x="%s" y="%s" text-anchor="middle" fill="#6b7280" font-size="14">%s</text>`,
			num(g.Width/2), num(g.Height/2), html.EscapeString(ChartPlaceholder))
		bw.WriteString("</svg>")
		return bw.Flush()
	}

	bw.WriteString("<defs>")
	for _, gr := range []struct{ id, color string }{
		{gradientPositive, ColorPositive},
		{gradientNegative, ColorNegative},
	} {
		fmt.Fprintf(bw, `<linearGradient id="%s" x1="0" y1="0" x2="0" y2="1">`+
			`<stop offset="0%%" stop-color="%s" stop-opacity="0.3"/>`+
			`<stop offset="100%%" stop-color="%s" stop-opacity="0"/></linearGradient>`, gr.id, gr.color, gr.color)
	}
	bw.WriteString("</defs>")

	fmt.Fprintf(bw, `<g transform="translate(%d, %d)">`, marginLeft, marginTop)
	fmt.Fprintf(bw, `<text x="-10" y="%s" dy="0.32em" text-anchor="end" fill="%s" font-size="12">%s</text>`,
		num(g.y(g.Max)), labelColor, FormatPrice(g.Max))
	fmt.Fprintf(bw, `<text x="-10" y="%s" text-anchor="end" fill="%s" font-size="12">%s</text>`,
		num(g.y(g.Min)), labelColor, FormatPrice(g.Min))
	fmt.Fprintf(bw, `<text x="0" y="%s" text-anchor="start" fill="%s" font-size="12">%s</text>`,
		num(g.InnerHeight+20), labelColor, html.EscapeString(shortDate(g.FirstDate)))
	fmt.Fprintf(bw, `<text x="%s" y="%s" text-anchor="end" fill="%s" font-size="12">%s</text>`,
		num(g.InnerWidth), num(g.InnerHeight+20), labelColor, html.EscapeString(shortDate(g.LastDate)))
	fmt.Fprintf(bw, `<path d="%s" fill="url(#%s)"/>`, g.Area, g.GradientID)
	fmt.Fprintf(bw, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`, g.Stroke, g.Color)
	bw.WriteString("</g></svg>")
	return bw.Flush()
}

// shortDate renders YYYY-MM-DD as M/D/YYYY, passing anything else through.
func shortDate(d string) string {
	t, err := time.Parse(domain.DateLayout, d)
	if err != nil {
		return d
	}
	return t.Format("1/2/2006")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
