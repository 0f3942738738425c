package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chameleon-party/chameleon-backend/internal/catalog"
	"github.com/chameleon-party/chameleon-backend/internal/config"
	"github.com/chameleon-party/chameleon-backend/internal/httpapi"
	"github.com/chameleon-party/chameleon-backend/internal/room"
	"github.com/chameleon-party/chameleon-backend/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := newLogger(cfg.LogEnv)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.TopicsPath)
	if err != nil {
		// An empty catalog is playable-but-degraded: rooms exist, rounds
		// report "no topics available" until the file is fixed.
		log.Warn("topic catalog unavailable", zap.String("path", cfg.TopicsPath), zap.Error(err))
		cat = catalog.New(nil)
	}
	log.Info("topic catalog loaded", zap.Int("topics", cat.Len()))

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		st = pg
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		log.Info("using in-memory store")
	}

	directory := room.NewDirectory(st, log)
	svc := room.NewService(st, cat, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(st, directory, svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
