package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"innkeeper/internal/config"
	"innkeeper/internal/metrics"
	"innkeeper/internal/worker"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Server accepts TCP connections and feeds them to a fixed-size worker
// pool. The pool channel is unbuffered, so once every worker is busy the
// acceptor holds further connections until one frees up.
type Server struct {
	cfg      config.ServerConfig
	pool     *worker.Pool
	limiter  *rate.Limiter
	logger   *zerolog.Logger
	listener net.Listener
}

func New(cfg config.ServerConfig, handler worker.Handler, logger *zerolog.Logger) *Server {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var limiter *rate.Limiter
	if cfg.AcceptRPS > 0 {
		burst := cfg.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRPS), burst)
	}

	return &Server{
		cfg:     cfg,
		pool:    worker.NewPool(workers, handler, logger),
		limiter: limiter,
		logger:  logger,
	}
}

// Listen binds the configured address. Separate from Serve so callers (and
// tests using ":0") can learn the bound address before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listen address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled. An accept failure that
// is not caused by shutdown is returned to the caller and is fatal: the
// process cannot take new clients and should exit.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.pool.Start(ctx)
	s.logger.Info().
		Str("addr", s.listener.Addr().String()).
		Int("workers", s.cfg.Workers).
		Msg("server listening")

	// Unblock Accept on shutdown.
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return s.shutdown(nil)
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return s.shutdown(nil)
			}
			return s.shutdown(fmt.Errorf("accept: %w", err))
		}

		metrics.IncConnections()
		if err := s.pool.Dispatch(ctx, conn); err != nil {
			return s.shutdown(nil)
		}
	}
}

func (s *Server) shutdown(err error) error {
	s.listener.Close()
	s.pool.Wait()
	if err != nil {
		s.logger.Error().Err(err).Msg("server stopped")
	} else {
		s.logger.Info().Msg("server stopped")
	}
	return err
}
