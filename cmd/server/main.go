package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smite-tools/draft-server/internal/config"
	"github.com/smite-tools/draft-server/internal/draft"
	"github.com/smite-tools/draft-server/internal/httpapi"
	"github.com/smite-tools/draft-server/internal/registry"
	"github.com/smite-tools/draft-server/internal/roster"
	"github.com/smite-tools/draft-server/internal/session"
	"github.com/smite-tools/draft-server/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ros, err := loadRoster(cfg)
	if err != nil {
		return err
	}
	logger.Info("roster loaded", zap.Int("items", ros.Len()))

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	reg := registry.New(ctx, draft.DefaultSequence, ros, store, logger)
	handler := httpapi.SetupRoutes(reg, ws.Options{
		Registry:       reg,
		Store:          store,
		Sequence:       draft.DefaultSequence,
		Log:            logger,
		OriginPatterns: cfg.OriginPatterns,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		reg.Inbox() <- registry.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if pg, ok := store.(*session.Postgres); ok {
		g.Go(func() error {
			return purgeLoop(gctx, pg, cfg.SessionTTL, logger)
		})
	}

	err = g.Wait()
	if store != nil {
		err = multierr.Append(err, store.Close())
	}
	return err
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadRoster(cfg config.Config) (*roster.Roster, error) {
	if cfg.RosterPath != "" {
		return roster.LoadFile(cfg.RosterPath)
	}
	return roster.Default()
}

func openStore(cfg config.Config) (session.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return session.NewMemory(cfg.SessionTTL), nil
	case config.StorePostgres:
		return session.OpenPostgres(cfg.DatabaseURL, cfg.SessionTTL)
	default:
		return nil, nil
	}
}

func purgeLoop(ctx context.Context, pg *session.Postgres, ttl time.Duration, logger *zap.Logger) error {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := pg.PurgeExpired(ctx); err != nil {
				logger.Warn("session purge failed", zap.Error(err))
			}
		}
	}
}
