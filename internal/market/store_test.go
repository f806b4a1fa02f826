package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"marketpulse/internal/domain"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func isRounded2(v float64) bool {
	return math.Abs(v*100-math.Round(v*100)) < 1e-6
}

func TestTickSingleInstrumentBounds(t *testing.T) {
	s := NewStore([]domain.Instrument{{Ticker: "TST", CurrentValue: 100.00}}, WithRand(testRand()))

	evt := s.Tick()
	got := evt.Instruments[0].CurrentValue
	if got < 99.75 || got > 100.25 {
		t.Errorf("price after one tick = %v, want in [99.75, 100.25]", got)
	}
	if !isRounded2(got) {
		t.Errorf("price %v not rounded to 2 decimals", got)
	}
}

func TestTickRoundsAllFields(t *testing.T) {
	s := NewStore(DefaultInstruments(), WithRand(testRand()))
	for i := 0; i < 200; i++ {
		evt := s.Tick()
		for _, inst := range evt.Instruments {
			if !isRounded2(inst.CurrentValue) || !isRounded2(inst.DailyChange) || !isRounded2(inst.YTDReturn) {
				t.Fatalf("tick %d: %s not rounded: %+v", i, inst.Ticker, inst)
			}
		}
	}
}

func TestTickPreservesOrderAndUntouchedFields(t *testing.T) {
	seed := DefaultInstruments()
	s := NewStore(seed, WithRand(testRand()))
	evt := s.Tick()

	if len(evt.Instruments) != len(seed) {
		t.Fatalf("len = %d, want %d", len(evt.Instruments), len(seed))
	}
	for i := range seed {
		got := evt.Instruments[i]
		if got.Ticker != seed[i].Ticker {
			t.Errorf("position %d ticker = %s, want %s", i, got.Ticker, seed[i].Ticker)
		}
		if got.MarketCap != seed[i].MarketCap || got.FiftyTwoWeekHigh != seed[i].FiftyTwoWeekHigh || got.Name != seed[i].Name {
			t.Errorf("%s: static fields changed: %+v", got.Ticker, got)
		}
		if d := math.Abs(got.DailyChange - seed[i].DailyChange); d > 2.5+0.005 {
			t.Errorf("%s: daily change moved %v, want <= 2.5", got.Ticker, d)
		}
	}
	if evt.Seq != 1 || s.Seq() != 1 {
		t.Errorf("Seq = %d/%d, want 1", evt.Seq, s.Seq())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewStore(DefaultInstruments(), WithRand(testRand()))
	snap := s.Snapshot()
	snap[0].CurrentValue = -1

	if got, _ := s.Get(snap[0].Ticker); got.CurrentValue == -1 {
		t.Error("mutating a snapshot changed the store")
	}
}

func TestTickFlashWindow(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(
		[]domain.Instrument{{Ticker: "A", CurrentValue: 50}},
		WithRand(testRand()),
		WithFlash(500*time.Millisecond),
		WithClock(func() time.Time { return at }),
	)
	evt := s.Tick()
	if !evt.At.Equal(at) {
		t.Errorf("At = %v, want %v", evt.At, at)
	}
	if want := at.Add(500 * time.Millisecond); !evt.FlashUntil.Equal(want) {
		t.Errorf("FlashUntil = %v, want %v", evt.FlashUntil, want)
	}
}

func TestNoClamping(t *testing.T) {
	// With a zero-width price band and a wide return band, returns wander
	// freely while price stays put.
	s := NewStore(
		[]domain.Instrument{{Ticker: "A", CurrentValue: 10, DailyChange: 0}},
		WithRand(testRand()),
		WithDrift(Drift{PricePct: 0, Daily: 50, YTD: 50}),
	)
	var maxAbs float64
	for i := 0; i < 500; i++ {
		evt := s.Tick()
		if evt.Instruments[0].CurrentValue != 10 {
			t.Fatalf("price moved with zero drift: %v", evt.Instruments[0].CurrentValue)
		}
		if len(evt.Changed) != 0 {
			t.Fatalf("Changed = %v, want none when price is fixed", evt.Changed)
		}
		maxAbs = math.Max(maxAbs, math.Abs(evt.Instruments[0].DailyChange))
	}
	if maxAbs <= 100 {
		t.Errorf("daily change never exceeded ±100 over 500 ticks (max %v); values look clamped", maxAbs)
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	s := NewStore([]domain.Instrument{{Ticker: "SPY"}, {Ticker: "SPY"}})
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want duplicates in seed dropped", s.Len())
	}
	if err := s.Add(domain.Instrument{Ticker: "SPY"}); err == nil {
		t.Error("Add duplicate should fail")
	}
	if err := s.Add(domain.Instrument{Ticker: "QQQ"}); err != nil {
		t.Errorf("Add: %v", err)
	}
	if _, ok := s.Get("QQQ"); !ok {
		t.Error("Get(QQQ) not found after Add")
	}
}

func TestSubscribeReceivesTicks(t *testing.T) {
	s := NewStore(DefaultInstruments(), WithRand(testRand()))
	id, ch := s.Subscribe(4)

	s.Tick()
	select {
	case evt := <-ch:
		if evt.Seq != 1 {
			t.Errorf("Seq = %d, want 1", evt.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestApplyIgnoresStaleEvents(t *testing.T) {
	s := NewStore(nil)
	if !s.Apply(TickEvent{Seq: 5, Instruments: []domain.Instrument{{Ticker: "X", CurrentValue: 1}}}) {
		t.Fatal("Apply(seq 5) = false")
	}
	if s.Apply(TickEvent{Seq: 4, Instruments: nil}) {
		t.Error("Apply(seq 4) after 5 should be ignored")
	}
	if got, ok := s.Get("X"); !ok || got.CurrentValue != 1 {
		t.Errorf("Get(X) = %+v, %v", got, ok)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewStore(DefaultInstruments(), WithRand(testRand()))
	_, ch := s.Subscribe(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Run produced no tick")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRound2(t *testing.T) {
	tests := map[float64]float64{
		1.005:   1.01,
		-1.005:  -1.01,
		99.7549: 99.75,
		0:       0,
	}
	for in, want := range tests {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

type fakeWatchlist struct {
	syms []string
	err  error
}

func (f fakeWatchlist) WatchlistSymbols(context.Context, string) ([]string, error) {
	return f.syms, f.err
}

func TestSeedFromWatchlist(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStore([]domain.Instrument{{Ticker: "SPY"}})
	lookup := func(_ context.Context, q string) (domain.Instrument, error) {
		if q == "BAD" {
			return domain.Instrument{}, errors.New("lookup failed")
		}
		return domain.Instrument{Ticker: q, Name: q + " Inc", CurrentValue: 10}, nil
	}

	added, err := SeedFromWatchlist(context.Background(), s, fakeWatchlist{syms: []string{"AAPL", "BAD", "SPY", "MSFT"}}, "main", lookup, log)
	if err != nil {
		t.Fatalf("SeedFromWatchlist: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	snap := s.Snapshot()
	want := []string{"SPY", "AAPL", "MSFT"}
	if len(snap) != len(want) {
		t.Fatalf("store has %d instruments, want %d", len(snap), len(want))
	}
	for i, tk := range want {
		if snap[i].Ticker != tk {
			t.Errorf("position %d = %s, want %s", i, snap[i].Ticker, tk)
		}
	}

	if _, err := SeedFromWatchlist(context.Background(), s, fakeWatchlist{err: errors.New("boom")}, "main", lookup, log); err == nil {
		t.Error("SeedFromWatchlist should fail when the watchlist cannot be listed")
	}
}

func TestNormalizeSymbols(t *testing.T) {
	got := normalizeSymbols([]string{" aapl", "AAPL", "", "msft "})
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("normalizeSymbols = %v", got)
	}
}
