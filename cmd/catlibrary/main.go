package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"catlibrary/internal/config"
	"catlibrary/internal/ratelimit"
	"catlibrary/internal/server"
	"catlibrary/internal/util"
	"catlibrary/pkg/events"
	"catlibrary/pkg/library"
	"catlibrary/pkg/seed"
)

func main() {
	defaultPath := config.ConfigPath
	if v := os.Getenv("CATLIB_CONFIG"); v != "" {
		defaultPath = v
	}
	configPath := flag.String("config", defaultPath, "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	books, err := seed.Collection(cfg.SeedPath)
	if err != nil {
		log.Fatalf("failed to load seed collection: %v", err)
	}
	lib := library.WithCollection(books, library.WithOperator(cfg.OperatorAddress(), cfg.OperatorNickname))

	networks, err := util.ParseNetworks(cfg.AllowedNetworks)
	if err != nil {
		log.Fatalf("failed to parse allowed networks: %v", err)
	}

	var closers []io.Closer
	srvCfg := server.Config{
		Library:        lib,
		Networks:       networks,
		MaxConnections: cfg.MaxConnections,
		Logger:         logger,
	}
	if cfg.RateLimitConnections > 0 {
		window, err := config.ParseRateLimitWindow(cfg.RateLimitWindow)
		if err != nil {
			log.Fatalf("failed to parse rate limit window: %v", err)
		}
		limiter, err := ratelimit.New(ratelimit.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Limit:    cfg.RateLimitConnections,
			Window:   window,
		})
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		closers = append(closers, limiter)
		srvCfg.Limiter = limiter
	}
	if cfg.EventsStream != "" {
		publisher, err := events.NewRedisStreamPublisher(events.RedisStreamConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.EventsStream,
			MaxLen:   cfg.EventsMaxLen,
		})
		if err != nil {
			log.Fatalf("failed to init events publisher: %v", err)
		}
		closers = append(closers, publisher)
		srvCfg.Publisher = publisher
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("waiting for meows", "addr", ln.Addr().String(), "books", lib.Len())
	if err := serve(ctx, srv, ln, closers...); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

// serve runs srv on ln until ctx is done or Serve fails. The closers are
// closed only after every session has ended, since sessions still use them.
func serve(ctx context.Context, srv *server.Server, ln net.Listener, closers ...io.Closer) error {
	group, ctx := errgroup.WithContext(ctx)
	served := make(chan struct{})
	group.Go(func() error {
		defer close(served)
		return srv.Serve(ctx, ln)
	})
	group.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		<-served
		var errs []error
		for _, c := range closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("close clients: %w", err)
		}
		return nil
	})
	return group.Wait()
}
