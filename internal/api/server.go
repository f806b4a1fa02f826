// Package api hosts the marketpulse listeners: the HTTP dashboard and the
// gRPC tick stream, started and stopped together.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"marketpulse/internal/config"
	"marketpulse/internal/live"
)

const shutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	cfg  config.Server
	http *http.Server
	grpc *grpc.Server // nil when the tick stream is disabled
	log  *slog.Logger
}

// NewServer creates a Server for handler and, when ticks is non-nil, the gRPC
// tick stream.
func NewServer(cfg config.Server, handler http.Handler, ticks *live.Server, log *slog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		http: &http.Server{
			Handler:     handler,
			ReadTimeout: cfg.ReadTimeout,
			// Websocket and search responses can be long-lived.
			WriteTimeout: cfg.WriteTimeout,
		},
		log: log,
	}
	if ticks != nil {
		s.grpc = grpc.NewServer()
		ticks.RegisterGRPC(s.grpc)
	}
	return s
}

// ListenAndServe opens the configured listeners and serves until ctx is
// cancelled or a listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	var grpcLis net.Listener
	if s.grpc != nil && s.cfg.GRPCAddr() != "" {
		grpcLis, err = net.Listen("tcp", s.cfg.GRPCAddr())
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("listening on %s: %w", s.cfg.GRPCAddr(), err)
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on the given listeners. grpcLis may be nil.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcLis != nil && s.grpc != nil {
		g.Go(func() error {
			s.log.Info("grpc server listening", "addr", grpcLis.Addr().String())
			if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting connections and waits for in-flight requests until
// ctx expires. Open tick streams are cut when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down servers")
	if s.grpc != nil {
		done := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	}
	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
