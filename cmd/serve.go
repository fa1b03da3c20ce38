package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storyweaver/server/internal/config"
	"storyweaver/server/internal/engine"
	"storyweaver/server/internal/genres"
	"storyweaver/server/internal/session"
	"storyweaver/server/internal/storage"
	"storyweaver/server/internal/web"
)

const (
	shutdownTimeout = 30 * time.Second
	pruneInterval   = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve loads the genre catalog, connects the session store, the optional
story archive and the generation provider, and serves the JSON API until
interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "override the configured listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	catalog, err := genres.Load(cfg.Genres.Path)
	if err != nil {
		logger.Warn("genre catalog unavailable", zap.String("path", cfg.Genres.Path), zap.Error(err))
	} else {
		logger.Info("genre catalog loaded", zap.Int("genres", catalog.Len()))
	}

	var memory *session.MemoryStore
	var sessions session.Store
	if cfg.Session.Store == config.SessionStoreRedis {
		redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
		if err != nil {
			logger.Warn("failed to connect to redis, keeping sessions in memory", zap.Error(err))
		} else {
			defer redisStore.Close()
			logger.Info("redis connected")
			sessions = redisStore.Sessions(cfg.Session.TTL)
		}
	}
	if sessions == nil {
		memory = session.NewMemoryStore(cfg.Session.TTL)
		sessions = memory
	}

	var archive web.StoryArchive
	var engineArchive engine.Archive
	if cfg.Database.MySQL.Host != "" {
		mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
		if err != nil {
			logger.Warn("failed to connect to mysql, story archive disabled", zap.Error(err))
		} else {
			defer mysqlStore.Close()
			logger.Info("mysql connected")
			archive = mysqlStore
			engineArchive = mysqlStore
		}
	}

	storyEngine, err := newStoryEngine(cfg, logger, engineArchive)
	if err != nil {
		logger.Warn("story generation disabled", zap.Error(err))
	}

	hub := web.NewProgressHub(logger)
	router := web.NewRouter(web.Dependencies{
		Config:   cfg,
		Catalog:  catalog,
		Sessions: sessions,
		Engine:   storyEngine,
		Archive:  archive,
		Hub:      hub,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if memory != nil {
		g.Go(func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case now := <-ticker.C:
					if n := memory.Prune(now); n > 0 {
						logger.Debug("pruned expired sessions", zap.Int("count", n))
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
