package market

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
)

// Drift bounds the per-tick random walk. Each bound is the maximum absolute
// change; the actual change is uniform in [-bound, +bound).
type Drift struct {
	PricePct float64 // percent of currentValue
	Daily    float64 // percentage points of dailyChange
	YTD      float64 // percentage points of ytdReturn
}

// DefaultDrift returns ±0.25% on price and ±2.5 points on the daily and
// year-to-date returns.
func DefaultDrift() Drift {
	return Drift{PricePct: 0.25, Daily: 2.5, YTD: 2.5}
}

// Perturb returns a copy of inst with currentValue, dailyChange and ytdReturn
// moved by a uniform random amount within d and rounded to 2 decimals. The
// returns drift without bounds over a long session.
func Perturb(inst domain.Instrument, rng *rand.Rand, d Drift) domain.Instrument {
	out := inst
	out.CurrentValue = Round2(inst.CurrentValue + uniform(rng)*inst.CurrentValue*d.PricePct/100)
	out.YTDReturn = Round2(inst.YTDReturn + uniform(rng)*d.YTD)
	out.DailyChange = Round2(inst.DailyChange + uniform(rng)*d.Daily)
	return out
}

// Round2 rounds v half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// uniform returns a value in [-1, 1).
func uniform(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}
