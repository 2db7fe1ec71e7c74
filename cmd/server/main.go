// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/fraud/internal/avatar"
	"github.com/jason-s-yu/fraud/internal/cache"
	"github.com/jason-s-yu/fraud/internal/catalog"
	"github.com/jason-s-yu/fraud/internal/config"
	"github.com/jason-s-yu/fraud/internal/database"
	"github.com/jason-s-yu/fraud/internal/filter"
	"github.com/jason-s-yu/fraud/internal/handlers"
	"github.com/jason-s-yu/fraud/internal/lobby"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(config.NewCommand(cfg, releaseVersion, serve).Execute())
}

func loadContent(cfg *config.Config) (*catalog.Catalog, *filter.WordList, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if cfg.CatalogFile != "" {
		cat, err = catalog.LoadFile(cfg.CatalogFile)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	words := filter.Default()
	if cfg.BannedWordsFile != "" {
		if words, err = filter.LoadFile(cfg.BannedWordsFile); err != nil {
			return nil, nil, fmt.Errorf("loading banned words: %w", err)
		}
	}
	return cat, words, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, words, err := loadContent(cfg)
	if err != nil {
		return err
	}

	opts := lobby.Options{
		Content:       cat,
		Names:         words,
		ContinueDelay: cfg.ContinueDelay,
		EmptyLobbyTTL: cfg.EmptyLobbyTTL,
		Logger:        logger,
	}

	var avatars avatar.Store = avatar.NewMemoryStore()
	var actionLog *cache.ActionLog
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		avatars = avatar.NewRedisStore(rdb, avatar.DefaultTTL)
		actionLog = cache.NewActionLog(rdb, cfg.ActionQueue, logger)
		opts.Actions = actionLog
		logger.WithField("addr", cfg.RedisAddr).Info("using redis for avatars and the action log")
	} else {
		logger.Info("no redis configured: avatars kept in memory, action log disabled")
	}
	opts.Avatars = avatar.Source{Store: avatars}

	if cfg.PostgresURL != "" {
		pool, err := database.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := database.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		opts.Results = store
		logger.Info("recording finished games in postgres")
	}

	manager, err := lobby.NewManager(opts)
	if err != nil {
		return err
	}

	api := &handlers.API{
		Manager:    manager,
		Categories: cat,
		Avatars:    avatars,
		PublicURL:  cfg.PublicURL,
		Logger:     logger,
	}
	ws := handlers.LobbyWSHandler(logger, manager, handlers.WSOptions{
		OriginPatterns: cfg.AllowedOrigins,
		MessageRate:    rate.Limit(cfg.MessageRate),
		MessageBurst:   cfg.MessageBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(api, ws, logger),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "version": releaseVersion}).Info("fraud server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	manager.Shutdown()
	actionLog.Wait()

	return nil
}
