package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketpulse/internal/domain"
	"marketpulse/internal/market"
	"marketpulse/internal/query"
)

func TestSQLiteQueryLogRecordRecent(t *testing.T) {
	ql, err := NewSQLiteQueryLog(filepath.Join(t.TempDir(), "db", "queries.db"))
	if err != nil {
		t.Fatalf("NewSQLiteQueryLog: %v", err)
	}
	defer ql.Close()
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := []query.Call{
		{Kind: query.KindStock, Ident: "AAPL", Started: start, Duration: 1200 * time.Millisecond},
		{Kind: query.KindHistory, Ident: "AAPL/1y", Started: start.Add(time.Second), Duration: 300 * time.Millisecond, Err: query.ErrParse},
		{Kind: query.KindNews, Ident: "top", Started: start.Add(2 * time.Second), Duration: time.Second},
	}
	for _, c := range calls {
		if err := ql.Record(ctx, c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := ql.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Kind != "news" || got[1].Kind != "history" {
		t.Errorf("order = %s, %s; want newest first", got[0].Kind, got[1].Kind)
	}
	h := got[1]
	if h.OK || h.Error != query.ErrParse.Error() || h.Ident != "AAPL/1y" {
		t.Errorf("history row = %+v", h)
	}
	if !h.StartedAt.Equal(start.Add(time.Second)) || h.Duration != 300*time.Millisecond {
		t.Errorf("history timing = %v, %v", h.StartedAt, h.Duration)
	}
	if !got[0].OK || got[0].Error != "" {
		t.Errorf("news row = %+v", got[0])
	}
}

func TestSQLiteQueryLogAsRecorder(t *testing.T) {
	ql, err := NewSQLiteQueryLog(filepath.Join(t.TempDir(), "queries.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ql.Close()

	var rec query.Recorder = ql
	if err := rec.Record(context.Background(), query.Call{Kind: query.KindStock, Ident: "X", Err: errors.New("boom")}); err != nil {
		t.Fatal(err)
	}
	got, err := ql.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].OK {
		t.Errorf("rows = %+v", got)
	}
}

func tickAt(seq uint64, at time.Time, prices ...float64) market.TickEvent {
	evt := market.TickEvent{Seq: seq, At: at}
	for i, p := range prices {
		evt.Instruments = append(evt.Instruments, domain.Instrument{
			Ticker:       string(rune('A' + i)),
			CurrentValue: p,
			DailyChange:  float64(i),
			YTDReturn:    -float64(i),
		})
	}
	return evt
}

func TestParquetArchiveFlushRead(t *testing.T) {
	dir := t.TempDir()
	a := NewParquetArchive(dir)

	if path, err := a.Flush(); err != nil || path != "" {
		t.Fatalf("empty Flush = %q, %v", path, err)
	}

	t0 := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	a.Append(tickAt(1, t0, 100, 200))
	a.Append(tickAt(2, t0.Add(2500*time.Millisecond), 100.1, 199.5))
	if a.Buffered() != 4 {
		t.Fatalf("Buffered = %d, want 4", a.Buffered())
	}

	path, err := a.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if want := filepath.Join(dir, "ticks-20240501T093000.000.parquet"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	if a.Buffered() != 0 {
		t.Errorf("buffer not cleared: %d", a.Buffered())
	}

	rows, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	last := rows[3]
	if last.Seq != 2 || last.Ticker != "B" || last.Price != 199.5 || last.DailyChange != 1 || last.YTDReturn != -1 {
		t.Errorf("last row = %+v", last)
	}
	if last.Time != t0.Add(2500*time.Millisecond).UnixMilli() {
		t.Errorf("last time = %d", last.Time)
	}

	files, err := ListArchives(dir)
	if err != nil || len(files) != 1 || files[0] != path {
		t.Errorf("ListArchives = %v, %v", files, err)
	}
}

func TestParquetArchiveFlushFailureKeepsRows(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := NewParquetArchive(blocker)

	t0 := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	a.Append(tickAt(1, t0, 100, 200))
	if _, err := a.Flush(); err == nil {
		t.Fatal("Flush into a file path succeeded")
	}
	if a.Buffered() != 2 {
		t.Fatalf("Buffered after failed Flush = %d, want 2", a.Buffered())
	}

	a.Append(tickAt(2, t0.Add(time.Second), 101, 201))
	a.Dir = filepath.Join(base, "archive")
	path, err := a.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if want := filepath.Join(a.Dir, "ticks-20240501T093000.000.parquet"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	rows, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(rows) != 4 || rows[0].Seq != 1 || rows[3].Seq != 2 {
		t.Errorf("rows = %+v, want seq 1 rows then seq 2 rows", rows)
	}
}

func TestListArchivesMissingDir(t *testing.T) {
	files, err := ListArchives(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(files) != 0 {
		t.Errorf("ListArchives = %v, %v", files, err)
	}
}

func TestParquetArchiveRunFlushesOnCancel(t *testing.T) {
	dir := t.TempDir()
	a := NewParquetArchive(dir)
	store := market.NewStore(market.DefaultInstruments())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, store, time.Hour, testLogger())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for a.Buffered() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("archive never received a tick")
		}
		store.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	files, err := ListArchives(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListArchives = %v, %v", files, err)
	}
	if fi, err := os.Stat(files[0]); err != nil || fi.Size() == 0 {
		t.Errorf("archive file = %v, %v", fi, err)
	}
}
