package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hakivo/enricher/internal/api"
	"github.com/hakivo/enricher/internal/config"
	"github.com/hakivo/enricher/internal/queue"
)

// --- enqueue ---

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <type> <entity-id>",
	Short: "Queue a job directly on the configured transport",
	Long: `Queue a job directly on the configured transport.

Types: enrich_news, enrich_bill, deep_analysis_bill, deep_analysis_state_bill

Examples:
  enricher enqueue enrich_bill 119-hr-42
  enricher enqueue deep_analysis_state_bill ca-2025-ab12
  enricher enqueue enrich_news 8f14e45f --via-api`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := queue.ParseJobType(args[0])
		if err != nil {
			return err
		}
		entityID := args[1]

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		viaAPI, _ := cmd.Flags().GetBool("via-api")
		if viaAPI {
			return enqueueViaAPI(cmd.Context(), newAPIClient(cfg), typ, entityID)
		}

		b, err := openBackends(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		id, err := b.publisher.Publish(cmd.Context(), queue.NewJob(typ, entityID))
		if err != nil {
			return err
		}
		printQueued(typ, entityID, id)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().Bool("via-api", false, "submit through a running worker's ops API")
}

func enqueueViaAPI(ctx context.Context, client *apiClient, typ queue.JobType, entityID string) error {
	resp, err := client.post(ctx, "/jobs", api.EnqueueRequest{Type: string(typ), EntityID: entityID})
	if err != nil {
		return err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	printQueued(typ, entityID, result["id"])
	return nil
}

func printQueued(typ queue.JobType, entityID, id string) {
	if id == "" {
		printSuccess("Queued %s for %s", typ, entityID)
		return
	}
	printSuccess("Queued %s for %s (job %s)", typ, entityID, id)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worker, model and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}
		showStatus(cmd.Context(), cfg, newAPIClient(cfg))
		return nil
	},
}

func showStatus(ctx context.Context, cfg config.Config, client *apiClient) {
	running := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Worker", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Worker", "running on %s", client.baseURL)
		} else {
			printStatus("Worker", "unhealthy (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Quick model", "%s (%s)", cfg.Models.QuickModel, cfg.Models.QuickProvider)
	printStatus("Deep model", "%s (%s)", cfg.Models.DeepModel, cfg.Models.DeepProvider)
	printStatus("Queue", "%s", cfg.Queue.Transport)
	printStatus("Storage", "%s", cfg.Storage.Driver)
	if cfg.Storage.Driver == "sqlite" {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		printWarning("configuration incomplete: %v", err)
	}

	if !running {
		return
	}
	resp, err := client.get(ctx, "/jobs/stats")
	if err != nil {
		return
	}
	var stats map[string]int
	if err := decodeJSON(resp, &stats); err != nil {
		printWarning("queue stats unavailable: %v", err)
		return
	}
	states := make([]string, 0, len(stats))
	for s := range stats {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		printStatus("Jobs "+s, "%d", stats[s])
	}
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := setupLogging(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Records:   b.store,
			Publisher: b.publisher,
			Stats:     b.stats,
		}, version)

		slog.Info("MCP server started (stdio transport)")
		stdioSrv := server.NewStdioServer(mcpSrv)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("  %s\n", colorize(colorCyan, config.ConfigFilePath()))
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
