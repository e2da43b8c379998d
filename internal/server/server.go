// Package server accepts guest connections and runs one session per
// connection against the shared library.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"catlibrary/internal/session"
	"catlibrary/internal/termio"
	"catlibrary/internal/util"
	"catlibrary/pkg/events"
	"catlibrary/pkg/library"
)

const refusedMessage = "too many connections, try again later.\n"

// Limiter decides whether a guest may open another connection.
type Limiter interface {
	Allow(ctx context.Context, addr netip.Addr) bool
}

// Config wires required dependencies for the line server.
type Config struct {
	Library   *library.Library
	Publisher events.Publisher
	// Limiter is optional; nil admits every connection.
	Limiter Limiter
	// Networks is optional; nil admits every address.
	Networks *util.Networks
	// MaxConnections caps concurrent sessions when positive.
	MaxConnections int
	Logger         *slog.Logger
}

// Server serves the library line protocol.
type Server struct {
	lib            *library.Library
	publisher      events.Publisher
	limiter        Limiter
	networks       *util.Networks
	maxConnections int
	logger         *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New constructs the server.
func New(cfg Config) (*Server, error) {
	if cfg.Library == nil {
		return nil, errors.New("server: library required")
	}
	if cfg.MaxConnections < 0 {
		return nil, errors.New("server: max connections must not be negative")
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		lib:            cfg.Library,
		publisher:      publisher,
		limiter:        cfg.Limiter,
		networks:       cfg.Networks,
		maxConnections: cfg.MaxConnections,
		logger:         logger,
		conns:          make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections on ln until ctx is done, then closes the
// listener and every open connection and waits for their sessions to end.
// It returns nil after a shutdown and the accept error otherwise.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.maxConnections > 0 {
		ln = netutil.LimitListener(ln, s.maxConnections)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeConns()
	})
	defer stop()
	defer s.wg.Wait()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("accept error, retrying", "err", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	addr := util.RemoteAddr(conn.RemoteAddr())
	ctx = util.WithSession(ctx, s.logger, addr)
	logger := util.LoggerFromContext(ctx)

	if !s.networks.Allows(addr) {
		logger.Warn("connection refused", "reason", "address not allowed")
		return
	}
	stream := termio.New(conn, conn)
	if s.limiter != nil && !s.limiter.Allow(ctx, addr) {
		logger.Warn("connection refused", "reason", "rate limited")
		stream.WriteString(refusedMessage)
		_ = stream.Flush()
		return
	}

	logger.Info("guest connected")
	err := session.New(stream, s.lib, addr, s.publisher).Run(ctx)
	switch {
	case err == nil, IsDisconnect(err):
		logger.Info("guest disconnected")
	case ctx.Err() != nil:
		logger.Info("session closed by shutdown")
	default:
		logger.Error("session error", "err", err)
	}
}

// track registers conn for shutdown; it refuses once shutdown has begun.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

// IsDisconnect reports whether err means the guest went away: end of input,
// a reset or broken pipe, or a connection closed under the session.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
