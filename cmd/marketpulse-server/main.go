package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"marketpulse/internal/api"
	"marketpulse/internal/config"
	"marketpulse/internal/controller"
	"marketpulse/internal/domain"
	"marketpulse/internal/httpapi"
	"marketpulse/internal/live"
	"marketpulse/internal/market"
	"marketpulse/internal/news"
	"marketpulse/internal/query"
	"marketpulse/internal/store"
	"marketpulse/internal/util"
)

const archiveFlushInterval = time.Minute

func main() {
	// .env is optional.
	_ = godotenv.Load()

	// Load config.
	cfgPath := "config/marketpulse.yaml"
	if p := os.Getenv("MARKETPULSE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logFileName := fmt.Sprintf("/tmp/marketpulse-server-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("marketpulse-server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gen, err := query.NewGenAIGenerator(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model, cfg.GenAI.BaseURL)
	if err != nil {
		return err
	}
	qc := query.NewClient(gen, cfg.GenAI.Timeout, logger.With("component", "query"))

	var queries *store.SQLiteQueryLog
	if cfg.Storage.SQLitePath != "" {
		queries, err = store.NewSQLiteQueryLog(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening query log: %w", err)
		}
		defer queries.Close()
		qc.SetRecorder(queries)
	}

	ms, err := newStore(ctx, cfg, qc, logger)
	if err != nil {
		return err
	}

	defRange, err := domain.ParseChartRange(cfg.Market.DefaultRange)
	if err != nil {
		return err
	}
	ctrl := controller.New(ms, qc, logger.With("component", "controller"), controller.WithDefaultRange(defRange))

	var lister httpapi.QueryLister
	if queries != nil {
		lister = queries
	}
	dash := httpapi.NewDashboardServer(ctrl, lister, logger.With("component", "http"))
	sources := []news.Source{news.NewGoogleRSS()}
	if cfg.Alpaca.APIKey != "" {
		sources = append(sources, news.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL))
	}
	dash.SetHeadlineSources(sources...)
	srv := api.NewServer(cfg.Server, dash.Handler(), live.NewServer(ms, logger.With("component", "live")), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms.Run(gctx, cfg.Market.TickInterval)
		return nil
	})
	g.Go(func() error {
		ctrl.Run(gctx)
		return nil
	})
	g.Go(func() error {
		dash.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		// A failed load is already reflected in the news panel.
		_ = ctrl.LoadNews(gctx)
		return nil
	})
	if cfg.Storage.ArchiveDir != "" {
		archive := store.NewParquetArchive(cfg.Storage.ArchiveDir)
		g.Go(func() error {
			archive.Run(gctx, ms, archiveFlushInterval, logger.With("component", "archive"))
			return nil
		})
	}
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	logger.Info("marketpulse-server started",
		"addr", cfg.Server.Addr(),
		"grpc", cfg.Server.GRPCAddr(),
		"instruments", ms.Len(),
		"tick", cfg.Market.TickInterval,
	)
	return g.Wait()
}

// newStore builds the instrument store from the configured seed list, the
// built-in list, and optionally an Alpaca watchlist.
func newStore(ctx context.Context, cfg *config.Config, qc *query.Client, logger *slog.Logger) (*market.Store, error) {
	seed := cfg.Market.Seed
	if len(seed) == 0 {
		seed = market.DefaultInstruments()
	}
	ms := market.NewStore(seed,
		market.WithDrift(market.Drift{
			PricePct: cfg.Market.PriceDriftPct,
			Daily:    cfg.Market.DailyDrift,
			YTD:      cfg.Market.YTDDrift,
		}),
		market.WithFlash(cfg.Market.FlashDuration),
	)

	if cfg.Alpaca.Watchlist == "" || cfg.Alpaca.APIKey == "" {
		return ms, nil
	}
	src := market.NewAlpacaWatchlist(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	n, err := market.SeedFromWatchlist(ctx, ms, src, cfg.Alpaca.Watchlist, qc.LookupStock, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("seeded from watchlist", "watchlist", cfg.Alpaca.Watchlist, "added", n)
	return ms, nil
}
