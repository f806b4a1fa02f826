package dashboard

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// FormatCurrency formats a USD value as "$1,234.56". Values under one cent in
// magnitude render as "$0.00".
func FormatCurrency(v float64) string {
	if math.Abs(v) < 0.01 {
		return "$0.00"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", v)
}

// FormatMarketCap formats a market capitalization with T/B/M suffixes, or
// "N/A" for instruments without one.
func FormatMarketCap(v float64) string {
	switch {
	case v == 0:
		return "N/A"
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	default:
		return "$" + strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// FormatPercent formats a percentage with an explicit sign, e.g. "+0.25%".
func FormatPercent(p float64) string {
	if p >= 0 {
		return fmt.Sprintf("+%.2f%%", p)
	}
	return fmt.Sprintf("%.2f%%", p)
}

// FormatPrice formats a bare price with two decimals, as used on chart axes.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// Tone classifies a return value for coloring: 1 positive, -1 negative, 0 flat.
func Tone(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
