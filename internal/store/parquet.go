package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"marketpulse/internal/market"
)

// Compile-time interface check.
var _ TickArchive = (*ParquetArchive)(nil)

// TickRecord is the Parquet schema for one instrument in one tick.
type TickRecord struct {
	Seq         int64   `parquet:"seq"`
	Time        int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	Ticker      string  `parquet:"ticker"`
	Price       float64 `parquet:"price"`
	DailyChange float64 `parquet:"daily_change"`
	YTDReturn   float64 `parquet:"ytd_return"`
}

// ParquetArchive buffers ticks in memory and writes one file per flush:
//
//	<Dir>/ticks-<first tick time>.parquet
type ParquetArchive struct {
	Dir string

	mu    sync.Mutex
	buf   []TickRecord
	start time.Time
}

// NewParquetArchive creates an archive rooted at dir.
func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{Dir: dir}
}

// Append buffers every instrument of evt.
func (a *ParquetArchive) Append(evt market.TickEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buf) == 0 {
		a.start = evt.At
	}
	ms := evt.At.UnixMilli()
	for _, inst := range evt.Instruments {
		a.buf = append(a.buf, TickRecord{
			Seq:         int64(evt.Seq),
			Time:        ms,
			Ticker:      inst.Ticker,
			Price:       inst.CurrentValue,
			DailyChange: inst.DailyChange,
			YTDReturn:   inst.YTDReturn,
		})
	}
}

// Buffered returns the number of rows waiting for Flush.
func (a *ParquetArchive) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Flush writes the buffered rows and clears the buffer. On a failed write the
// rows go back to the front of the buffer for the next Flush.
func (a *ParquetArchive) Flush() (string, error) {
	a.mu.Lock()
	records, start := a.buf, a.start
	a.buf = nil
	a.mu.Unlock()

	if len(records) == 0 {
		return "", nil
	}
	path := a.path(start)
	if err := writeParquetFile(path, records); err != nil {
		a.mu.Lock()
		a.buf = append(records, a.buf...)
		a.start = start
		a.mu.Unlock()
		return "", fmt.Errorf("writing tick archive %s: %w", path, err)
	}
	return path, nil
}

// Run appends every tick from store and flushes every interval, and once more
// when ctx is cancelled.
func (a *ParquetArchive) Run(ctx context.Context, store *market.Store, interval time.Duration, log *slog.Logger) {
	id, ch := store.Subscribe(64)
	defer store.Unsubscribe(id)

	t := time.NewTicker(interval)
	defer t.Stop()

	flush := func() {
		path, err := a.Flush()
		switch {
		case err != nil:
			log.Error("flushing tick archive", "error", err)
		case path != "":
			log.Info("tick archive written", "path", path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case evt, ok := <-ch:
			if !ok {
				flush()
				return
			}
			a.Append(evt)
		case <-t.C:
			flush()
		}
	}
}

func (a *ParquetArchive) path(start time.Time) string {
	return filepath.Join(a.Dir, "ticks-"+start.UTC().Format("20060102T150405.000")+".parquet")
}

// ReadArchive reads every row of one archive file.
func ReadArchive(path string) ([]TickRecord, error) {
	return readParquetFile[TickRecord](path)
}

// ListArchives returns the archive files under dir, oldest first.
func ListArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "ticks-") || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// writeParquetFile writes records to path, creating parent directories.
func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

// readParquetFile reads all records of type T from path.
func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
