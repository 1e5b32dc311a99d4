package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hakivo/enricher/internal/api"
	"github.com/hakivo/enricher/internal/config"
	"github.com/hakivo/enricher/internal/enrich"
	"github.com/hakivo/enricher/internal/llm/ollama"
	"github.com/hakivo/enricher/internal/metrics"
	"github.com/hakivo/enricher/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume enrichment jobs and serve the ops API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		noHTTP, _ := cmd.Flags().GetBool("no-http")
		return runWorker(!noHTTP)
	},
}

func init() {
	workerCmd.Flags().Bool("no-http", false, "do not start the ops HTTP server")
}

func loadRules(cfg config.Config) (*metrics.Rules, error) {
	if cfg.Rules.Path == "" {
		return metrics.NewRules(metrics.Default()), nil
	}
	rs, err := metrics.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return metrics.NewRules(rs), nil
}

func runWorker(serveHTTP bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	slog.Info("enricher starting", "version", version, "queue", cfg.Queue.Transport, "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inv, oc, err := newInvoker(cfg)
	if err != nil {
		return err
	}
	if oc != nil {
		printStep("Checking Ollama models at %s", cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, oc, ollamaModels(cfg), os.Stderr); err != nil {
			return err
		}
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			slog.Warn("closing backends", "error", err)
		}
	}()

	if b.recover != nil {
		n, err := b.recover(ctx)
		if err != nil {
			return fmt.Errorf("recovering in-flight messages: %w", err)
		}
		if n > 0 {
			slog.Info("requeued in-flight messages from a previous run", "count", n)
		}
	}

	pipeline := enrich.New(b.store, inv, rules)
	consumer := queue.NewConsumer(b.source, enrich.NewRouter(pipeline), cfg.Queue.Concurrency, cfg.Queue.PollInterval)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gCtx)
	})

	if cfg.Rules.Path != "" && cfg.Rules.Watch {
		g.Go(func() error {
			return rules.Watch(gCtx, cfg.Rules.Path)
		})
	}

	if serveHTTP {
		srv := &http.Server{
			Addr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
			Handler: api.NewAppHandler(api.AppDeps{
				Records:   b.store,
				Publisher: b.publisher,
				Stats:     b.stats,
				Health:    b.store,
				Token:     cfg.Server.APIToken,
			}),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return gCtx
			},
		}
		g.Go(func() error {
			slog.Info("ops API listening", "addr", srv.Addr, "auth", cfg.Server.APIToken != "")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("enricher stopped")
	return err
}
