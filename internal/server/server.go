// Package server implements the origin HTTP/1.1 server instance with its two
// connection dispatch strategies: a goroutine per connection sharing the
// process metrics register, or an isolated worker process per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/TerronesDiaz/socketbench/internal/metrics"
	"github.com/TerronesDiaz/socketbench/internal/transform"
)

type Mode string

const (
	ModeThreading Mode = "threading"
	ModeForking   Mode = "forking"
)

var (
	// ErrForkUnsupported is returned when forking mode is requested on a
	// platform that cannot pass sockets to worker processes.
	ErrForkUnsupported = errors.New("forking mode is not supported on this platform")

	errUnknownMode = errors.New("unknown concurrency mode")
)

// ParseMode validates a mode selector from the CLI or environment.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeThreading, ModeForking:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q (want %q or %q)", errUnknownMode, s, ModeThreading, ModeForking)
}

// Config describes one server instance.
type Config struct {
	Host        string
	Port        int
	Mode        Mode
	PublicDir   string
	ServerName  string
	ReadTimeout time.Duration
}

// Instance is one running origin server. It owns its listener, its metrics
// register, and the dispatch strategy for accepted connections.
type Instance struct {
	cfg     Config
	reg     *metrics.Register
	handler *Handler
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Instance, error) {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Mode == ModeForking && !ForkSupported() {
		return nil, ErrForkUnsupported
	}

	reg := metrics.NewRegister()
	return &Instance{
		cfg:     cfg,
		reg:     reg,
		handler: NewHandler(cfg, reg, transform.Default(), logger),
		logger:  logger.Named("server").With(zap.String("mode", string(cfg.Mode)), zap.Int("port", cfg.Port)),
	}, nil
}

// Metrics exposes the instance register. In forking mode this is the
// parent-side aggregate fed by worker result records.
func (s *Instance) Metrics() *metrics.Register {
	return s.reg
}

// ListenAndServe binds the configured address and serves until ctx is
// cancelled. A bind failure is returned to the caller; it is the only fault
// that terminates the instance.
func (s *Instance) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln until ctx is cancelled. Every accepted
// connection is dispatched according to the configured mode; per-connection
// faults never reach this loop.
func (s *Instance) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("shutting down")
				return nil
			}
			// Transient accept failures (aborted handshakes, fd
			// exhaustion) are retried after a short pause.
			s.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		switch s.cfg.Mode {
		case ModeForking:
			go s.superviseForked(conn)
		default:
			go s.handleThreaded(conn)
		}
	}
}

// handleThreaded runs the connection on this goroutine's shared-memory path
// and records the result exactly once.
func (s *Instance) handleThreaded(conn net.Conn) {
	rec := s.handler.HandleConn(conn)
	s.reg.Record(rec.Elapsed(), rec.Success())
}
