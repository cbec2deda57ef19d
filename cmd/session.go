package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zjrosen/appwatch/internal/config"
	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/metrics"
	"github.com/zjrosen/appwatch/internal/tracing"
	"github.com/zjrosen/appwatch/internal/watcher"
)

// session holds what one watch or top run starts and must shut down.
type session struct {
	src      *source
	client   *watcher.Client
	provider *tracing.Provider
	metrics  *metrics.Metrics
	server   *http.Server
	addr     string
}

func startSession(c config.Config) (*session, error) {
	src, err := openSource(c.Feed)
	if err != nil {
		return nil, err
	}

	provider, err := tracing.NewProvider(c.Tracing, tracing.Options{})
	if err != nil {
		return nil, fmt.Errorf("starting tracing: %w", err)
	}

	s := &session{src: src, provider: provider}

	var rec watcher.Recorder
	if c.Metrics.Enabled {
		s.metrics = metrics.New(metrics.WithProcessCollectors())
		rec = s.metrics
		if err := s.serveMetrics(c.Metrics.Addr); err != nil {
			_ = provider.Shutdown(context.Background())
			return nil, err
		}
	}

	s.client = newClient(c, src.ws, provider.Tracer(), rec)
	return s, nil
}

func (s *session) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	s.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorErr(log.CatMetrics, "metrics server stopped", err, "addr", s.addr)
		}
	}()
	log.Info(log.CatMetrics, "serving metrics", "addr", s.addr)
	return nil
}

// drive runs the source in the background and reports when it ends.
func (s *session) drive(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := s.src.drive(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorErr(log.CatFeed, "source failed", err)
		}
		done <- err
	}()
	return done
}

func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}
	errs = append(errs, s.provider.Shutdown(ctx))
	return errors.Join(errs...)
}
