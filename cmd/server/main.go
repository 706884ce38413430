package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/livesync/internal/config"
	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/mcp"
	platformotel "github.com/rpggio/livesync/internal/platform/otel"
	"github.com/rpggio/livesync/internal/realtime"
	"github.com/rpggio/livesync/internal/sqlite"
	"github.com/rpggio/livesync/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := platformotel.Setup(ctx, cfg.OTel.ServiceName, cfg.OTel.Endpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	defer hub.Close()

	app := wire(db, hub, cfg, logger)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Live:  app.live,
			Audit: app.audit,
		},
		TransportMode: cfg.Transport.Mode,
		StdioActor:    access.Actor{UID: cfg.MCP.StdioUID, Email: cfg.MCP.StdioEmail},
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(ctx, logger, mcpServer)
		return
	}

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = mcp.NewHTTPHandler(mcpServer)
	}
	router := transport.NewServer(app.api(hub), transport.Options{
		Logger: logger,
		MCP:    mcpHandler,
	})
	runHTTPMode(ctx, logger, router, cfg.Server.Host, cfg.Server.Port, hub.Close)
}

type services struct {
	workspaces *workspace.Service
	live       *livestate.Service
	audit      *audit.Service
	audience   *audience.Service
}

func (s services) api(hub *realtime.Hub) transport.Services {
	return transport.Services{
		Workspaces: s.workspaces,
		Live:       s.live,
		Audit:      s.audit,
		Audience:   s.audience,
		Hub:        hub,
	}
}

// wire builds the process-scoped services once. The audit service needs the
// workspace service as its owner check, and the workspace service records
// into the audit service, so the guard is set after both exist.
func wire(db *sqlite.DB, hub *realtime.Hub, cfg config.Config, logger *slog.Logger) services {
	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), nil, logger)
	workspaceSvc := workspace.NewService(
		sqlite.NewWorkspaceRepository(db),
		sqlite.NewSnapshotRepository(db),
		auditSvc,
		logger,
	)
	workspaceSvc.SetSnapshotRetention(cfg.Snapshots.Keep)
	auditSvc.SetGuard(workspaceSvc)

	liveSvc := livestate.NewService(sqlite.NewSessionStateRepository(db), workspaceSvc, auditSvc, hub, logger)
	audienceSvc := audience.NewService(sqlite.NewMessageRepository(db), workspaceSvc, auditSvc, logger)

	return services{
		workspaces: workspaceSvc,
		live:       liveSvc,
		audit:      auditSvc,
		audience:   audienceSvc,
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport")

	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

// newHTTPServer builds the API server. onShutdown hooks run as soon as
// Shutdown starts; closing the hub there ends open streams, which Shutdown
// would otherwise wait out.
func newHTTPServer(addr string, handler http.Handler, onShutdown ...func()) *http.Server {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, f := range onShutdown {
		httpServer.RegisterOnShutdown(f)
	}
	return httpServer
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, handler http.Handler, host string, port int, onShutdown ...func()) {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := newHTTPServer(addr, handler, onShutdown...)

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
