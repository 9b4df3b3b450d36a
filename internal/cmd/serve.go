package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/boozedog/loginflow/internal/config"
	"github.com/boozedog/loginflow/internal/host"
	"github.com/boozedog/loginflow/internal/reload"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge service for browser tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, watch bool) error {
	ctx := cmd.Context()

	logBuf := host.NewLogBuffer(200)
	level := new(slog.LevelVar)
	log := newLogger(os.Stderr, level, logBuf)

	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level.Set(parseLevel(cfg.LogLevel))
	log.Info("config loaded", "http", cfg.HTTP.Address, "session", cfg.Session.Backend, "log_level", level.Level().String())
	if cfg.Site.ID == "" {
		log.Warn("site.id not set, tabs must announce their own site id")
	}

	sessions, st, release, err := openSessions(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening sessions: %w", err)
	}
	defer release()

	hub := host.NewHub(cfg, sessions, st, log)
	srv := host.NewServer(hub, st, logBuf, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if watch {
		w, err := reload.New(root.configPath, func(next *config.Config) {
			if next.HTTP.Address != cfg.HTTP.Address || next.Session != cfg.Session || next.Database != cfg.Database {
				log.Warn("listener and storage changes need a restart")
			}
			level.Set(parseLevel(next.LogLevel))
			hub.Reload(next)
		}, log)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	g.Go(func() error {
		log.Info("loginflow starting", "address", cfg.HTTP.Address)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
