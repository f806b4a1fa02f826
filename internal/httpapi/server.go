package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketpulse/internal/controller"
	"marketpulse/internal/dashboard"
	"marketpulse/internal/domain"
	"marketpulse/internal/news"
	"marketpulse/internal/query"
	"marketpulse/internal/store"
)

// QueryLister lists recent upstream queries.
type QueryLister interface {
	Recent(ctx context.Context, limit int) ([]store.QueryRecord, error)
}

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	ctrl    *controller.Controller
	hub     *Hub
	queries QueryLister // nil when the query log is disabled
	sources []news.Source
	log     *slog.Logger
	now     func() time.Time
}

// NewDashboardServer creates a new dashboard HTTP server. queries may be nil.
func NewDashboardServer(ctrl *controller.Controller, queries QueryLister, log *slog.Logger) *DashboardServer {
	return &DashboardServer{
		ctrl:    ctrl,
		hub:     NewHub(ctrl, log),
		queries: queries,
		log:     log,
		now:     time.Now,
	}
}

// SetHeadlineSources enables GET /api/headlines/{ticker}.
func (s *DashboardServer) SetHeadlineSources(sources ...news.Source) {
	s.sources = sources
}

// Hub returns the websocket hub. Its Run loop must be started by the caller.
func (s *DashboardServer) Hub() *Hub { return s.hub }

// RegisterRoutes registers all routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /static/app.js", handleAppJS)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/instruments", s.handleInstruments)
	mux.HandleFunc("POST /api/sort/{key}", s.handleSort)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("PUT /api/detail/{ticker}", s.handleSelect)
	mux.HandleFunc("PUT /api/detail/range/{range}", s.handleRange)
	mux.HandleFunc("DELETE /api/detail", s.handleClose)
	mux.HandleFunc("GET /api/detail/chart.svg", s.handleChart)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("POST /api/news/refresh", s.handleNewsRefresh)
	mux.HandleFunc("GET /api/queries", s.handleQueries)
	mux.HandleFunc("GET /api/headlines/{ticker}", s.handleHeadlines)
	mux.HandleFunc("GET /api/ws", s.hub.ServeWS)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeTransitionError maps a controller error to a status code.
func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrUnknownInstrument), errors.Is(err, controller.ErrNoSelection):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, query.UserMessage(err))
	}
}

// parseSortState reads optional "sort" and "dir" query params on top of def.
func parseSortState(r *http.Request, def dashboard.SortState) (dashboard.SortState, error) {
	s := def
	if v := r.URL.Query().Get("sort"); v != "" {
		k, err := dashboard.ParseSortKey(v)
		if err != nil {
			return s, err
		}
		s.Key = k
	}
	if v := r.URL.Query().Get("dir"); v != "" {
		d, err := dashboard.ParseDirection(v)
		if err != nil {
			return s, err
		}
		s.Dir = d
	}
	return s, nil
}

func (s *DashboardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	writeJSON(w, HealthResponse{Status: "ok", Seq: st.Seq, Instruments: len(st.Instruments)})
}

func (s *DashboardServer) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.State())
}

func (s *DashboardServer) handleInstruments(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	sortState, err := parseSortState(r, st.Sort)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list := dashboard.SortInstruments(s.ctrl.Instruments(), sortState)
	writeJSON(w, InstrumentsResponse{
		Seq:         st.Seq,
		Sort:        sortState,
		Instruments: convertInstruments(list, st.Flash, s.now()),
	})
}

func (s *DashboardServer) handleSort(w http.ResponseWriter, r *http.Request) {
	key, err := dashboard.ParseSortKey(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, s.ctrl.Sort(key))
}

func (s *DashboardServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	if err := s.ctrl.Search(r.Context(), q); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, s.ctrl.State().Search)
}

func (s *DashboardServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Select(r.Context(), r.PathValue("ticker")); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, s.ctrl.State().Detail)
}

func (s *DashboardServer) handleRange(w http.ResponseWriter, r *http.Request) {
	rng, err := domain.ParseChartRange(r.PathValue("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.ChangeRange(r.Context(), rng); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, s.ctrl.State().Detail)
}

func (s *DashboardServer) handleClose(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CloseDetail()
	w.WriteHeader(http.StatusNoContent)
}

func (s *DashboardServer) handleChart(w http.ResponseWriter, r *http.Request) {
	width := floatParam(r, "width", dashboard.ChartWidth)
	height := floatParam(r, "height", dashboard.ChartHeight)
	g, err := s.ctrl.Chart(width, height)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := dashboard.RenderSVG(w, g); err != nil {
		s.log.Error("rendering chart", "error", err)
	}
}

func (s *DashboardServer) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.State().News)
}

func (s *DashboardServer) handleNewsRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.LoadNews(r.Context()); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, s.ctrl.State().News)
}

func (s *DashboardServer) handleQueries(w http.ResponseWriter, r *http.Request) {
	resp := QueryLogResponse{Queries: []QueryLogEntryJSON{}}
	if s.queries == nil {
		writeJSON(w, resp)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := s.queries.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("listing queries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list queries")
		return
	}
	for _, q := range recs {
		resp.Queries = append(resp.Queries, QueryLogEntryJSON{
			Kind:       q.Kind,
			Ident:      q.Ident,
			StartedAt:  q.StartedAt,
			DurationMS: q.Duration.Milliseconds(),
			OK:         q.OK,
			Error:      q.Error,
		})
	}
	writeJSON(w, resp)
}

func (s *DashboardServer) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(r.PathValue("ticker")))
	resp := HeadlinesResponse{Ticker: ticker, Items: []domain.NewsItem{}}
	if len(s.sources) == 0 {
		writeJSON(w, resp)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	items, err := news.Collect(r.Context(), s.sources, ticker, limit, s.log)
	if err != nil {
		s.log.Error("collecting headlines", "ticker", ticker, "error", err)
		writeError(w, http.StatusBadGateway, query.NewsFetchMessage)
		return
	}
	if items != nil {
		resp.Items = items
	}
	writeJSON(w, resp)
}

// floatParam reads a positive float query param, falling back to def.
func floatParam(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
