package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/phylodag/internal/api"
	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/engine"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the model over HTTP and hot-reload it when the file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g.configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

func serve(ctx context.Context, cfgPath, addr string) error {
	log := slog.Default()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(cfgPath, log)
	if err != nil {
		return err
	}
	cfg := loader.Config()

	// ── Build initial model ───────────────────────────────────────────────────
	reg := dist.DefaultRegistry()
	tpl, err := engine.TemplateFromConfig(cfg, reg)
	if err != nil {
		return err
	}
	log.Info("model built", "nodes", len(cfg.Model.Nodes), "moves", len(cfg.Moves))

	// ── Engine ────────────────────────────────────────────────────────────────
	poolCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := engine.New(poolCtx, tpl, cfg.Engine, log)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.ModelConfig) {
		next, err := engine.TemplateFromConfig(newCfg, reg)
		if err != nil {
			log.Warn("hot-reload skipped: model build failed", "err", err)
			return
		}
		eng.SwapModel(next)
		log.Info("model hot-reloaded", "nodes", len(newCfg.Model.Nodes))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		log.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.New(eng, loader, reg, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Engine.RunTimeoutMs)*time.Millisecond + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop the chain pool
	eng.Shutdown()
	log.Info("goodbye")
	return nil
}
