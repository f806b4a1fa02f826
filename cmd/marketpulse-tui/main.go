package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
	"marketpulse/internal/live"
	"marketpulse/internal/market"
	"marketpulse/pkg/marketpulse"
)

const defaultFlash = 500 * time.Millisecond

// Messages.
type tickMsg market.TickEvent
type flashDoneMsg struct{ seq uint64 }
type syncErrMsg struct{ err error }

type detailMsg struct {
	detail *marketpulse.Detail
	err    error
}

// Detailer is the subset of the HTTP SDK the detail panel uses.
type Detailer interface {
	Select(ctx context.Context, ticker string) (*marketpulse.Detail, error)
	SetRange(ctx context.Context, r string) (*marketpulse.Detail, error)
	CloseDetail(ctx context.Context) error
}

func waitForTick(ch <-chan market.TickEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return tickMsg(evt)
	}
}

// Model.
type model struct {
	store    *market.Store
	ticks    <-chan market.TickEvent
	api      Detailer // nil disables the detail panel
	flashFor time.Duration

	sortState dashboard.SortState
	rows      []domain.Instrument
	seq       uint64
	lastTick  time.Time
	flash     map[string]bool
	flashSeq  uint64
	syncErr   string

	// Selection.
	selectedTicker string

	// Detail panel.
	detail        *marketpulse.Detail
	detailLoading bool
	detailErr     string

	viewport      viewport.Model
	ready         bool
	width, height int
	syncCancel    context.CancelFunc
	logger        *slog.Logger
}

func initialModel(s *market.Store, ticks <-chan market.TickEvent, api Detailer, cancel context.CancelFunc, logger *slog.Logger) model {
	m := model{
		store:      s,
		ticks:      ticks,
		api:        api,
		flashFor:   defaultFlash,
		sortState:  dashboard.DefaultSort(),
		flash:      make(map[string]bool),
		syncCancel: cancel,
		logger:     logger,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return waitForTick(m.ticks)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.syncCancel()
			return m, tea.Quit
		case "s":
			m.sortState = m.sortState.Toggle(dashboard.NextSortKey(m.sortState.Key))
			m.refresh()
			m.render()
			return m, nil
		case "r":
			m.sortState = reverse(m.sortState)
			m.refresh()
			m.render()
			return m, nil
		case "up", "down":
			m.moveSelection(msg.String() == "up")
			m.render()
			m.ensureVisible()
			return m, nil
		case "enter":
			if m.api == nil || m.selectedTicker == "" {
				return m, nil
			}
			m.detailLoading = true
			m.detailErr = ""
			m.render()
			api, ticker := m.api, m.selectedTicker
			return m, func() tea.Msg {
				d, err := api.Select(context.Background(), ticker)
				return detailMsg{detail: d, err: err}
			}
		case "1", "2", "3", "4":
			if m.api == nil || m.detail == nil {
				return m, nil
			}
			r := domain.AllRanges()[msg.String()[0]-'1']
			m.detailLoading = true
			m.render()
			api := m.api
			return m, func() tea.Msg {
				d, err := api.SetRange(context.Background(), string(r))
				return detailMsg{detail: d, err: err}
			}
		case "esc":
			if m.detail == nil && m.detailErr == "" {
				return m, nil
			}
			m.detail, m.detailErr, m.detailLoading = nil, "", false
			m.render()
			api := m.api
			if api == nil {
				return m, nil
			}
			return m, func() tea.Msg {
				if err := api.CloseDetail(context.Background()); err != nil {
					return detailMsg{err: err}
				}
				return nil
			}
		}

	case tickMsg:
		evt := market.TickEvent(msg)
		m.seq = evt.Seq
		m.lastTick = evt.At
		m.flash = make(map[string]bool, len(evt.Changed))
		for _, t := range evt.Changed {
			m.flash[t] = true
		}
		m.flashSeq = evt.Seq
		m.refresh()
		m.render()
		cmds := []tea.Cmd{waitForTick(m.ticks)}
		if len(evt.Changed) > 0 {
			seq := evt.Seq
			cmds = append(cmds, tea.Tick(m.flashFor, func(time.Time) tea.Msg {
				return flashDoneMsg{seq: seq}
			}))
		}
		return m, tea.Batch(cmds...)

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = make(map[string]bool)
			m.render()
		}
		return m, nil

	case detailMsg:
		m.detailLoading = false
		if msg.err != nil {
			m.logger.Error("detail request failed", "error", msg.err)
			m.detailErr = msg.err.Error()
		} else if msg.detail != nil {
			m.detail = msg.detail
			m.detailErr = msg.detail.Error
		}
		m.render()
		return m, nil

	case syncErrMsg:
		m.syncErr = msg.err.Error()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 1
		footerH := 1
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.render()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh re-sorts the mirrored instruments and keeps the selection valid.
func (m *model) refresh() {
	m.rows = dashboard.SortInstruments(m.store.Snapshot(), m.sortState)
	if m.selectedTicker == "" && len(m.rows) > 0 {
		m.selectedTicker = m.rows[0].Ticker
	}
}

func (m *model) render() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
}

func (m *model) selectedIndex() int {
	for i, r := range m.rows {
		if r.Ticker == m.selectedTicker {
			return i
		}
	}
	return -1
}

func (m *model) moveSelection(up bool) {
	if len(m.rows) == 0 {
		return
	}
	cur := m.selectedIndex()
	switch {
	case cur < 0:
		cur = 0
	case up && cur > 0:
		cur--
	case !up && cur < len(m.rows)-1:
		cur++
	}
	m.selectedTicker = m.rows[cur].Ticker
}

// ensureVisible scrolls the viewport so the selected row is on screen. The
// table starts after one header line.
func (m *model) ensureVisible() {
	line := m.selectedIndex() + 1
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
	} else if line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line - m.viewport.Height + 1)
	}
}

func reverse(s dashboard.SortState) dashboard.SortState {
	if s.Dir == dashboard.Ascending {
		s.Dir = dashboard.Descending
	} else {
		s.Dir = dashboard.Ascending
	}
	return s
}

func main() {
	_ = godotenv.Load()

	addr := "localhost:50051"
	if a := os.Getenv("STREAM_ADDR"); a != "" {
		addr = a
	}

	logPath := fmt.Sprintf("/tmp/marketpulse-tui-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

	mirror := market.NewStore(nil)
	subID, ticks := mirror.Subscribe(16)
	defer mirror.Unsubscribe(subID)
	client := live.NewClient(addr, mirror, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- client.Sync(ctx)
	}()

	// Wait for the initial snapshot.
	fmt.Fprint(os.Stderr, "syncing snapshot...")
	deadline := time.Now().Add(10 * time.Second)
	for mirror.Len() == 0 {
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, " no snapshot from %s\n", addr)
			os.Exit(1)
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintf(os.Stderr, " %d instruments\n", mirror.Len())

	// Optional HTTP API for the detail panel.
	var api Detailer
	if u := os.Getenv("MARKETPULSE_URL"); u != "" {
		api = marketpulse.NewClient(u)
		logger.Info("detail panel enabled", "url", u)
	}

	p := tea.NewProgram(
		initialModel(mirror, ticks, api, cancel, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		if err := <-syncErr; err != nil && ctx.Err() == nil {
			logger.Error("sync error", "error", err)
			p.Send(syncErrMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
