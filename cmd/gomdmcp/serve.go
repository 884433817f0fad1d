package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	mdmcp "github.com/rickchristie/motherduck-mcp"
	"github.com/rickchristie/motherduck-mcp/internal/meta"
)

// startupTimeout bounds the initial connect + ping.
const startupTimeout = 60 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio or http)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Load ServerConfig: file, then environment
	serverConfig, err := loadServerConfig(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyEnvOverrides(serverConfig, os.LookupEnv); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if err := validateServerConfig(serverConfig); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 2. Resolve token. stdio owns stdin, so only prompt on a terminal.
	conn := &serverConfig.Connection
	if conn.RequireToken && conn.Token == "" && isTTY(os.Stdin.Fd()) {
		conn.Token = promptToken("MotherDuck token: ")
	}

	// 3. Setup logger. stdout carries the protocol in stdio mode.
	logger := setupLogger(serverConfig.Logging, serverConfig.Server.Transport)

	// 4. Create MotherDuckMcp instance
	mdMcp, err := mdmcp.New(serverConfig.Config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create MotherDuckMcp")
		return err
	}
	defer mdMcp.Close(ctx)

	// 5. Connect eagerly so a bad token fails before serving
	logger.Info().Str("path", conn.Path).Msg("testing database connection")
	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	err = mdMcp.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Int("session_hint", mdMcp.SessionHint()).Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("gomdmcp", meta.Version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithHooks(hooks),
	)
	mdmcp.RegisterMCPTools(mcpServer, mdMcp)

	// 7. Serve
	if serverConfig.Server.Transport == "stdio" {
		logger.Info().Msg("starting gomdmcp server on stdio")
		return server.ServeStdio(mcpServer, server.WithErrorLogger(log.New(logger, "", 0)))
	}
	return serveHTTP(ctx, mcpServer, serverConfig.Server, logger)
}

func serveHTTP(ctx context.Context, mcpServer *server.MCPServer, settings mdmcp.ServerSettings, logger zerolog.Logger) error {
	addr := fmt.Sprintf(":%d", settings.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if settings.HealthCheckEnabled {
		mux.HandleFunc(settings.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Start() does not register the handler when a custom *http.Server is
	// provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", settings.Port).Msg("starting gomdmcp server on http")
		errCh <- streamableServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return streamableServer.Shutdown(shutdownCtx)
	}
}

func setupLogger(config mdmcp.LoggingConfig, transport string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	switch {
	case config.Output == "stdout" && transport != "stdio":
		output = os.Stdout
	case config.Output != "" && config.Output != "stderr" && config.Output != "stdout":
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptToken(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	token, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(token))
}
