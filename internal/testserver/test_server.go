// Package testserver runs the full livesync HTTP stack on an in-memory
// database for end-to-end tests.
package testserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/mcp"
	"github.com/rpggio/livesync/internal/realtime"
	"github.com/rpggio/livesync/internal/sqlite"
	"github.com/rpggio/livesync/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server     *httptest.Server
	DB         *sqlite.DB
	Hub        *realtime.Hub
	Workspaces *workspace.Service
	Live       *livestate.Service
	Audit      *audit.Service
	Audience   *audience.Service
}

// New starts a server with every service wired the way cmd/server wires
// them, MCP included.
func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	hub := realtime.NewHub()

	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), nil, nil)
	workspaceSvc := workspace.NewService(sqlite.NewWorkspaceRepository(db), sqlite.NewSnapshotRepository(db), auditSvc, nil)
	auditSvc.SetGuard(workspaceSvc)
	liveSvc := livestate.NewService(sqlite.NewSessionStateRepository(db), workspaceSvc, auditSvc, hub, nil)
	audienceSvc := audience.NewService(sqlite.NewMessageRepository(db), workspaceSvc, auditSvc, nil)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Live: liveSvc, Audit: auditSvc},
		TransportMode: "http",
	})
	router := transport.NewServer(transport.Services{
		Workspaces: workspaceSvc,
		Live:       liveSvc,
		Audit:      auditSvc,
		Audience:   audienceSvc,
		Hub:        hub,
	}, transport.Options{
		MCP:             mcp.NewHTTPHandler(mcpServer),
		StreamKeepAlive: 50 * time.Millisecond,
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		hub.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:     server,
		DB:         db,
		Hub:        hub,
		Workspaces: workspaceSvc,
		Live:       liveSvc,
		Audit:      auditSvc,
		Audience:   audienceSvc,
	}
}

// Do sends a JSON request as actor and decodes the JSON reply.
func (ts *TestServer) Do(t *testing.T, method, path string, actor access.Actor, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor.UID != "" {
		req.Header.Set(transport.HeaderUserUID, actor.UID)
	}
	if actor.Email != "" {
		req.Header.Set(transport.HeaderUserEmail, actor.Email)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}
