package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/blokus-backend/internal/auth"
	"github.com/DoyleJ11/blokus-backend/internal/config"
	"github.com/DoyleJ11/blokus-backend/internal/httpapi"
	"github.com/DoyleJ11/blokus-backend/internal/hub"
	"github.com/DoyleJ11/blokus-backend/internal/room"
	"github.com/DoyleJ11/blokus-backend/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(store, auth.Options{AllowGuests: cfg.AllowGuests, Admins: cfg.Admins})

	h := hub.NewHub(logger, room.Options{
		StartSeconds: int(cfg.TurnBudget / time.Second),
		BonusSeconds: int(cfg.TurnBonus / time.Second),
	})
	srv := session.NewServer(h, authSvc, logger, session.Options{
		ChatRate:  rate.Limit(cfg.ChatRate),
		ChatBurst: cfg.ChatBurst,
	})

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.TCPAddr, err)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(h, srv, logger, cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ServeTCP(gctx, ln) })
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		h.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg.Build()
}

func openStore(cfg config.Config, logger *zap.Logger) (auth.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, accounts are kept in memory")
		return auth.NewMemoryStore(), nil
	}
	return auth.OpenPostgres(cfg.DatabaseURL, logger)
}
