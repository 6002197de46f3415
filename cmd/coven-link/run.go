// ABOUTME: run command: sends one user message and streams the agent's turn
// ABOUTME: Checkpoints land in the session store so a later run continues the conversation

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2389/coven-link/internal/config"
	"github.com/2389/coven-link/internal/connect"
	"github.com/2389/coven-link/internal/metrics"
	"github.com/2389/coven-link/internal/session"
	"github.com/2389/coven-link/internal/store"
	"github.com/2389/coven-link/internal/tools"
	"github.com/2389/coven-link/internal/transport"
	"github.com/2389/coven-link/internal/wire"
)

// Headers sent on every Run stream.
const (
	headerClientType    = "x-client-type"
	headerClientVersion = "x-client-version"
)

type runOptions struct {
	sessionID string
	model     string
	mode      string
	workDir   string
	approve   bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run \"<message>\"",
		Short: "Send a message to the agent and stream the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(args[0])
			if text == "" {
				return fmt.Errorf("message cannot be empty")
			}
			if opts.mode != "" && !session.ValidMode(opts.mode) {
				return fmt.Errorf("unknown mode %q", opts.mode)
			}

			cfg, err := global.load()
			if err != nil {
				return err
			}
			if opts.workDir != "" {
				cfg.Tools.WorkingDir = opts.workDir
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runTurn(ctx, cfg, opts, text)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Session to continue (default: new session)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model ID for this turn (default: last used model)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Agent mode: default, auto-run, plan, background or search")
	cmd.Flags().StringVar(&opts.workDir, "workdir", "", "Directory the local tools operate in (default: tools.working_dir)")
	cmd.Flags().BoolVar(&opts.approve, "approve", false, "Approve web search and mode switch requests")

	return cmd
}

func runTurn(ctx context.Context, cfg *config.Config, opts *runOptions, text string) error {
	logger := setupLogger(cfg.Logging, os.Stderr)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		stop := serveMetrics(cfg.Metrics, m, logger)
		defer stop()
	}

	shutdownTracing, err := metrics.InitTracing(ctx, metrics.TracingOptions{
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPHeaders:  cfg.Tracing.OTLPHeaders,
		Writer:       os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.sessionID == "" {
		opts.sessionID = uuid.NewString()
	}
	sessions := session.NewManager(s, logger)
	agent, err := sessions.Ensure(ctx, opts.sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	md := agent.Metadata()

	model := opts.model
	if model == "" {
		model = md.LastUsedModel
	}
	mode := opts.mode
	if mode == "" {
		mode = md.Mode
	}

	workspace, err := tools.NewWorkspace(cfg.Tools.WorkingDir, cfg.Tools.ShellTimeout)
	if err != nil {
		return fmt.Errorf("opening workspace: %w", err)
	}

	tc, err := transport.Dial(transport.DialOptions{
		Addr:        cfg.Backend.Addr,
		Insecure:    cfg.Backend.Insecure,
		Token:       cfg.Backend.Token,
		Compression: cfg.Backend.Compression,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("connecting to backend: %w", err)
	}
	defer tc.Close()

	client := connect.NewClient(tc, connect.Options{
		HeartbeatInterval:     cfg.Connection.HeartbeatInterval,
		ExecHeartbeatInterval: cfg.Connection.ExecHeartbeatInterval,
		MaxRetries:            cfg.Connection.MaxRetries,
		BackoffBase:           cfg.Connection.BackoffBase,
		BackoffMax:            cfg.Connection.BackoffMax,
		Logger:                logger,
		Metrics:               m,
	})

	req := &wire.RunRequest{
		ConversationState: agent.LatestCheckpoint(),
		Action: &wire.ConversationAction{Action: &wire.UserMessageAction{
			UserMessage: wire.UserMessage{Text: text, MessageID: uuid.NewString(), Mode: mode},
		}},
		ConversationID: agent.AgentID(),
	}
	if model != "" {
		req.ModelDetails = &wire.ModelDetails{ModelID: model}
	}

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "session %s  agent %s  backend %s\n\n", opts.sessionID, agent.AgentID(), cfg.Backend.Addr)

	listener := newTerminalListener(os.Stdout, opts.approve)
	start := time.Now()
	runErr := client.Run(ctx, req, connect.RunOptions{
		Listener:          listener,
		Resources:         tools.NewRegistry(workspace),
		Blobs:             agent,
		Checkpoints:       agent,
		Headers:           runHeaders(cfg.Backend),
		OnConnectionState: listener.connectionState,
	})

	// Persist on every outcome; checkpoints received before a failure are still resumable.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := agent.UpdateMetadata(persistCtx, func(md *store.Metadata) {
		if model != "" {
			md.LastUsedModel = model
		}
		if mode != "" {
			md.Mode = mode
		}
	}); err != nil {
		logger.Warn("failed to save session metadata", "session", opts.sessionID, "error", err)
	}
	if _, err := sessions.Persist(persistCtx, opts.sessionID); err != nil {
		logger.Warn("failed to persist session", "session", opts.sessionID, "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, connect.ErrCancelled) {
			gray.Fprintf(os.Stderr, "\ncancelled; continue with --session %s\n", opts.sessionID)
			return nil
		}
		return runErr
	}
	gray.Fprintf(os.Stderr, "\ndone in %s; continue with --session %s\n", time.Since(start).Round(time.Millisecond), opts.sessionID)
	return nil
}

func runHeaders(cfg config.BackendConfig) map[string]string {
	headers := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		headers[strings.ToLower(k)] = v
	}
	headers[headerClientType] = cfg.ClientType
	clientVersion := cfg.ClientVersion
	if clientVersion == "" {
		clientVersion = version
	}
	headers[headerClientVersion] = clientVersion
	return headers
}

// serveMetrics exposes m on cfg.Addr until the returned func is called.
func serveMetrics(cfg config.MetricsConfig, m *metrics.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, m.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", cfg.Addr, "error", err)
		}
	}()
	logger.Debug("serving metrics", "addr", cfg.Addr, "path", cfg.Path)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
