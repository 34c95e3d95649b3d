package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/fixture-runner/metrics"
)

// Service serves /metrics and /healthz on one listener for the lifetime of a run.
type Service struct {
	log      log.Logger
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func New(logger log.Logger) *Service {
	if logger == nil {
		logger = log.Root()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", &HealthzHandler{log: logger})
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return &Service{
		log:    logger,
		server: &http.Server{Handler: c.Handler(mux)},
	}
}

// Start binds host:port and serves in the background. Port 0 picks a free port.
func (s *Service) Start(host string, port int) error {
	if s.listener != nil {
		return errors.New("service already started")
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.done = make(chan struct{})

	s.log.Info("starting metrics server", "addr", listener.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error serving metrics", "err", err)
			metrics.RecordErrorDetails("metrics server", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Service) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.log.Info("service shutting down")
	err := s.server.Shutdown(ctx)
	<-s.done
	s.log.Info("service stopped")
	return err
}
