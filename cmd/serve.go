package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jaredassist/jared/internal/config"
	"github.com/jaredassist/jared/internal/googleauth"
	"github.com/jaredassist/jared/internal/instrumentation"
	"github.com/jaredassist/jared/internal/llm"
	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/orchestrator"
	"github.com/jaredassist/jared/internal/outbox"
	"github.com/jaredassist/jared/internal/server"
	"github.com/jaredassist/jared/internal/tools/assistant"
)

func newServeCmd() *cobra.Command {
	var (
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the assistant's
operations (read_filter, draft, analyze_thread, send_draft) over stdio.

Drafts are never sent by the drafting operation itself: every send requires
a separate assistant_send_draft confirmation carrying the token returned
when the draft was composed.

Credentials:
  Google mail access reads a token cached by the companion auth flow;
  set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET so it can refresh.
  The model API key comes from the environment variable named in the
  config file (OPENAI_API_KEY by default).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(metricsEnabled, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the Prometheus metrics server on a dedicated port")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address (default from config, :9090)")

	return cmd
}

func runServe(metricsEnabled bool, metricsAddr string) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddress
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("instrumentation shutdown failed", "error", err)
		}
	}()

	orch, draftStore, err := buildAssistant(shutdownCtx, cfg, provider.Metrics())
	if err != nil {
		return err
	}

	serverContext := server.NewServerContext(shutdownCtx, orch)
	serverContext.SetOutbox(draftStore)
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Warn("server context shutdown failed", "error", err)
		}
	}()

	var metricsServer *server.MetricsServer
	if metricsEnabled && provider.Enabled() {
		health := server.NewHealthChecker(serverContext)
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsAddr,
			InstrumentationProvider: provider,
		}, health)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				slog.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("jared", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := assistant.RegisterAssistantTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register assistant tools: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

// buildAssistant wires the production dependency graph: authenticated Gmail
// provider behind a rate limiter, the chat-completions backend, the durable
// draft outbox, and the orchestrator on top.
func buildAssistant(ctx context.Context, cfg config.Config, metrics *instrumentation.Metrics) (*orchestrator.Orchestrator, *outbox.Store, error) {
	auth := googleauth.NewFileProvider(
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
	)
	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("google credentials unavailable: %w", err)
	}
	gmailProvider, err := mailbox.NewGmailProvider(ctx, httpClient)
	if err != nil {
		return nil, nil, fmt.Errorf("create mail provider: %w", err)
	}
	mailProvider := mailbox.NewRateLimited(gmailProvider)

	backend, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.Model.APIKey(),
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		Timeout: cfg.Model.Timeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create model backend: %w", err)
	}

	draftStore, err := outbox.Open(outboxPath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open draft outbox: %w", err)
	}

	orch := orchestrator.New(mailProvider, backend, orchestrator.Options{
		Quotas:               cfg.BridgeQuotas(),
		Roles:                cfg.Roles(),
		Outbox:               draftStore,
		Metrics:              metrics,
		MaxAttempts:          cfg.Retry.MaxAttempts,
		RetryInitialInterval: cfg.Retry.InitialInterval(),
	})
	return orch, draftStore, nil
}

// outboxPath resolves the draft database location, defaulting to the user
// cache directory so confirmations survive restarts.
func outboxPath(cfg config.Config) string {
	if cfg.Outbox.Path != "" {
		return cfg.Outbox.Path
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = "."
	}
	return filepath.Join(cacheDir, "jared", "outbox.db")
}

// requestTimeout bounds a single CLI-invoked orchestration.
const requestTimeout = 5 * time.Minute
