package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steward-ai/steward/internal/agent"
	"github.com/steward-ai/steward/internal/bus"
	"github.com/steward-ai/steward/internal/config"
	"github.com/steward-ai/steward/internal/llm"
	"github.com/steward-ai/steward/internal/mcp"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/internal/scheduler"
	"github.com/steward-ai/steward/internal/storage"
	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/internal/tools/files"
	"github.com/steward-ai/steward/internal/tools/gateway"
	"github.com/steward-ai/steward/internal/tools/notes"
	"github.com/steward-ai/steward/internal/tools/policy"
	"github.com/steward-ai/steward/internal/tools/taskops"
	"github.com/steward-ai/steward/internal/tools/websearch"
	"github.com/steward-ai/steward/pkg/models"
)

// shutdownGrace bounds how long stop and close calls may take on exit.
const shutdownGrace = 5 * time.Second

func buildChatCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "main", "Session id for conversation history")
	return cmd
}

func runChat(sessionID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if debug {
		cfg.Logging.Level = "debug"
	}
	logger := observability.Setup(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()
	tracer, shutdownTracing := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "steward",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	b, closeBus := buildBus(cfg, logger)
	defer closeBus()
	registry := tools.NewRegistry()
	pol := policy.New(cfg.Tools.Confirm, cfg.Tools.Deny)

	audit := gateway.NewAuditLogger(store, gateway.WithAuditLogger(logger))
	defer audit.Close()

	gw := gateway.New(registry, pol,
		gateway.WithAudit(audit),
		gateway.WithMetrics(metrics),
		gateway.WithTracer(tracer),
		gateway.WithLogger(logger),
	)

	if err := registerLocalTools(cfg, registry, store, b); err != nil {
		return err
	}

	manager := mcp.NewManager(loadMCPConfig(cfg),
		mcp.WithManagerLogger(logger),
		mcp.WithClientVersion(version),
	)
	manager.ConnectAll(ctx, registry)
	defer manager.Close()

	runtimeOpts := []agent.Option{
		agent.WithPrompts(agent.LoadPrompts(cfg.Prompts.Dir)),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
		agent.WithTracer(tracer),
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("no LLM API key configured, input will be echoed")
	} else {
		client, err := llm.New(llm.Options{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Timeout:  cfg.LLM.Timeout(),
		})
		if err != nil {
			return err
		}
		runtimeOpts = append(runtimeOpts, agent.WithLLM(client))
	}
	agent.New(b, store, gw, registry, runtimeOpts...).Subscribe()

	b.Subscribe(bus.TopicOutputText, func(ctx context.Context, msg any) error {
		out, ok := msg.(bus.OutputText)
		if !ok {
			return nil
		}
		if out.SessionID != sessionID {
			fmt.Printf("\n[%s] %s\n", out.SessionID, out.Text)
			return nil
		}
		fmt.Println(out.Text)
		return nil
	})

	if cfg.Storage.Retention.Enabled {
		sweeper, err := storage.NewRetentionSweeper(store,
			cfg.Storage.Retention.Cron,
			time.Duration(cfg.Storage.Retention.KeepDays)*24*time.Hour,
			storage.WithSweeperLogger(logger),
		)
		if err != nil {
			return err
		}
		sweeper.Start(ctx)
		defer stopWithGrace(sweeper.Stop)
	}

	sched := scheduler.New(store, b, cfg.Scheduler.SessionID,
		scheduler.WithInterval(cfg.Scheduler.Interval()),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(metrics),
	)
	sched.Start(ctx)
	defer stopWithGrace(sched.Stop)

	if cfg.Metrics.Addr != "" {
		serveMetrics(ctx, cfg.Metrics.Addr)
	}

	logger.Info("steward ready", "session_id", sessionID, "provider", cfg.LLM.Provider)
	return repl(ctx, b, sessionID)
}

// buildBus picks the event bus: in-process by default, Redis pub/sub when
// configured so external producers (UI, voice) can join.
func buildBus(cfg *config.Config, logger *slog.Logger) (bus.Bus, func()) {
	if cfg.Bus.RedisAddr == "" {
		return bus.NewInProc(bus.WithLogger(logger)), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Bus.RedisAddr})
	opts := []bus.RedisOption{bus.WithRedisLogger(logger)}
	if cfg.Bus.ChannelPrefix != "" {
		opts = append(opts, bus.WithChannelPrefix(cfg.Bus.ChannelPrefix))
	}
	rb := bus.NewRedis(client, opts...)
	return rb, func() {
		_ = rb.Close()
		_ = client.Close()
	}
}

// registerLocalTools adds the built-in tool set: workspace file access, web
// search, notes, and task management.
func registerLocalTools(cfg *config.Config, registry *tools.Registry, store *storage.Store, b bus.Bus) error {
	if err := files.Register(registry, files.Resolver{Root: cfg.Workspace.Root}); err != nil {
		return err
	}
	searcher, err := websearch.NewSearcher(websearch.Config{
		Provider:         cfg.Tools.WebSearch.Provider,
		BraveAPIKey:      cfg.Tools.WebSearch.BraveAPIKey,
		PerplexityAPIKey: cfg.Tools.WebSearch.PerplexityAPIKey,
		PerplexityModel:  cfg.Tools.WebSearch.PerplexityModel,
		MaxResults:       cfg.Tools.WebSearch.MaxResults,
	})
	if err != nil {
		return err
	}
	if err := websearch.Register(registry, searcher); err != nil {
		return err
	}
	if err := notes.Register(registry, store); err != nil {
		return err
	}
	return taskops.New(store, b, cfg.Scheduler.SessionID).Register(registry)
}

// loadMCPConfig tolerates a broken servers file: MCP tools are additive and
// their absence must not keep the agent from starting.
func loadMCPConfig(cfg *config.Config) mcp.Config {
	mcpCfg, err := mcp.LoadConfig(cfg.MCP.ConfigPath)
	if err != nil {
		slog.Warn("mcp config unusable, continuing without servers",
			"path", cfg.MCP.ConfigPath, "error", err)
		return mcp.Config{}
	}
	return mcpCfg
}

// repl feeds stdin lines onto the bus until EOF, an exit command, or a
// signal. The in-process bus delivers synchronously, so by the time Publish
// returns the turn's output has already printed.
func repl(ctx context.Context, b bus.Bus, sessionID string) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Print("you> ")
		}
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "/quit" || text == "/exit" {
				return nil
			}
			err := b.Publish(ctx, bus.TopicInputText, bus.InputText{
				SessionID: sessionID,
				MessageID: models.NewMessageID(),
				TS:        time.Now().Unix(),
				Text:      text,
				Source:    bus.SourceCLI,
			})
			if err != nil {
				return err
			}
		}
	}
}

// serveMetrics exposes /metrics until the context ends.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func stopWithGrace(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = stop(ctx)
}
