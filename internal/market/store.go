// Package market provides the in-memory instrument store: an ordered list of
// instruments that is replaced with a randomly perturbed snapshot on every
// tick, with pub/sub so the dashboard and stream clients see each tick.
package market

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"marketpulse/internal/domain"
)

// TickEvent is emitted to subscribers after every tick. Instruments is the new
// snapshot in store order; Changed lists tickers whose currentValue moved and
// should flash until FlashUntil.
type TickEvent struct {
	Seq         uint64
	At          time.Time
	Instruments []domain.Instrument
	Changed     []string
	FlashUntil  time.Time
}

// Store holds the instrument list. Order is insertion order and never changes
// on tick; sorting is a projection done by readers.
type Store struct {
	mu          sync.RWMutex
	instruments []domain.Instrument
	index       map[string]int // ticker -> position
	seq         uint64
	drift       Drift
	flash       time.Duration
	rng         *rand.Rand // guarded by mu
	now         func() time.Time

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan TickEvent
}

// Option configures a Store.
type Option func(*Store)

// WithDrift overrides the perturbation amplitudes.
func WithDrift(d Drift) Option {
	return func(s *Store) { s.drift = d }
}

// WithFlash sets how long changed rows stay highlighted.
func WithFlash(d time.Duration) Option {
	return func(s *Store) { s.flash = d }
}

// WithRand sets the random source used by Tick.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rng = r }
}

// WithClock sets the time source stamped on tick events.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store seeded with the given instruments. Duplicate
// tickers after the first occurrence are dropped.
func NewStore(seed []domain.Instrument, opts ...Option) *Store {
	s := &Store{
		index: make(map[string]int, len(seed)),
		drift: DefaultDrift(),
		flash: 500 * time.Millisecond,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d61726b6574)),
		now:   time.Now,
		subs:  make(map[int]chan TickEvent),
	}
	for _, o := range opts {
		o(s)
	}
	for _, inst := range seed {
		if _, dup := s.index[inst.Ticker]; dup {
			continue
		}
		s.index[inst.Ticker] = len(s.instruments)
		s.instruments = append(s.instruments, inst)
	}
	return s
}

// Add appends an instrument. It fails if the ticker is already present.
func (s *Store) Add(inst domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[inst.Ticker]; dup {
		return fmt.Errorf("instrument %s already tracked", inst.Ticker)
	}
	s.index[inst.Ticker] = len(s.instruments)
	s.instruments = append(s.instruments, inst)
	return nil
}

// Snapshot returns a copy of the current instruments in store order.
func (s *Store) Snapshot() []domain.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out
}

// Get returns the instrument with the given ticker.
func (s *Store) Get(ticker string) (domain.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[ticker]
	if !ok {
		return domain.Instrument{}, false
	}
	return s.instruments[i], true
}

// Len returns the number of instruments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instruments)
}

// Seq returns the sequence number of the last applied tick.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Tick replaces every instrument with a perturbed copy and notifies
// subscribers. The returned event is also what subscribers receive.
func (s *Store) Tick() TickEvent {
	s.mu.Lock()
	next := make([]domain.Instrument, len(s.instruments))
	var changed []string
	for i, inst := range s.instruments {
		next[i] = Perturb(inst, s.rng, s.drift)
		if next[i].CurrentValue != inst.CurrentValue {
			changed = append(changed, inst.Ticker)
		}
	}
	s.instruments = next
	s.seq++
	at := s.now()
	evt := TickEvent{
		Seq:         s.seq,
		At:          at,
		Instruments: s.copyLocked(),
		Changed:     changed,
		FlashUntil:  at.Add(s.flash),
	}
	s.mu.Unlock()

	s.broadcast(evt)
	return evt
}

// Apply installs a tick produced elsewhere (a mirrored stream) as the current
// state and forwards it to local subscribers. Events older than the current
// sequence are ignored.
func (s *Store) Apply(evt TickEvent) bool {
	s.mu.Lock()
	if evt.Seq != 0 && evt.Seq <= s.seq {
		s.mu.Unlock()
		return false
	}
	s.instruments = make([]domain.Instrument, len(evt.Instruments))
	copy(s.instruments, evt.Instruments)
	s.index = make(map[string]int, len(evt.Instruments))
	for i, inst := range s.instruments {
		s.index[inst.Ticker] = i
	}
	s.seq = evt.Seq
	s.mu.Unlock()

	s.broadcast(evt)
	return true
}

// Run ticks the store every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Subscribe creates a new subscription channel for tick events.
func (s *Store) Subscribe(bufSize int) (id int, ch <-chan TickEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id = s.nextSubID
	s.nextSubID++
	c := make(chan TickEvent, bufSize)
	s.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// broadcast sends an event to all subscribers without blocking.
func (s *Store) broadcast(evt TickEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber, drop event.
		}
	}
}

// copyLocked returns a copy of the instruments. Must be called with mu held.
func (s *Store) copyLocked() []domain.Instrument {
	out := make([]domain.Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out
}
