package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
)

// LiveStateService defines session state operations needed by MCP.
type LiveStateService interface {
	ReadState(ctx context.Context, workspaceID, sessionID string) (*livestate.SessionState, error)
	UpsertState(ctx context.Context, workspaceID, sessionID string, actor access.Actor, partial map[string]any) (*livestate.SessionState, error)
	IssueCommand(ctx context.Context, workspaceID, sessionID string, actor access.Actor, command string) (*livestate.SessionState, error)
}

// AuditService defines audit reads needed by MCP.
type AuditService interface {
	Summarize(ctx context.Context, workspaceID string, actor access.Actor, from, to time.Time) (*audit.Summary, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Live  LiveStateService
	Audit AuditService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	TransportMode string // "stdio" or "http"
	// StdioActor is the identity used for every stdio call, since stdio has
	// no request headers.
	StdioActor access.Actor
	Version    string
	Logger     *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "livesync",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	if cfg.TransportMode == "stdio" {
		server.AddReceivingMiddleware(staticIdentityMiddleware(cfg.StdioActor))
	} else {
		server.AddReceivingMiddleware(headerIdentityMiddleware())
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{
		Stateless:      false,
		SessionTimeout: 30 * time.Minute,
	})
}
