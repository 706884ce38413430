package integration_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func serverBinary(t *testing.T) string {
	t.Helper()
	for _, path := range []string{"./bin/livesync", "../../bin/livesync"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("server binary not found, run 'make build' first")
	return ""
}

func stdioEnv() []string {
	return append(os.Environ(),
		"LIVESYNC_TRANSPORT_MODE=stdio",
		"LIVESYNC_DB_PATH=:memory:",
		"LIVESYNC_MCP_STDIO_UID=ws1",
		"LIVESYNC_MCP_STDIO_EMAIL=owner@example.com",
	)
}

// TestStdioProtocolCompliance drives the server binary over stdio with the
// SDK client.
func TestStdioProtocolCompliance(t *testing.T) {
	binaryPath := serverBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = stdioEnv()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	require.NoError(t, err, "failed to connect to server")
	defer session.Close()

	t.Run("ServerInfo", func(t *testing.T) {
		initResult := session.InitializeResult()
		require.NotNil(t, initResult)
		require.NotNil(t, initResult.ServerInfo)
		require.Equal(t, "livesync", initResult.ServerInfo.Name)
		require.NotEmpty(t, initResult.ServerInfo.Version)
	})

	t.Run("ListTools", func(t *testing.T) {
		tools, err := session.ListTools(ctx, nil)
		require.NoError(t, err)

		toolNames := make(map[string]bool)
		for _, tool := range tools.Tools {
			toolNames[tool.Name] = true
		}
		for _, name := range []string{"live_state_get", "live_state_upsert", "live_command_issue", "audit_summary"} {
			require.True(t, toolNames[name], "missing tool: %s", name)
		}
	})

	t.Run("UpsertThenGet", func(t *testing.T) {
		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name: "live_state_upsert",
			Arguments: map[string]any{
				"workspace_id": "ws1",
				"session_id":   "main",
				"state":        map[string]any{"activeItemId": "a"},
			},
		})
		require.NoError(t, err)
		require.False(t, result.IsError, "upsert returned error: %v", result)

		result, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name:      "live_state_get",
			Arguments: map[string]any{"workspace_id": "ws1", "session_id": "main"},
		})
		require.NoError(t, err)
		require.False(t, result.IsError)
		require.NotEmpty(t, result.Content)
	})
}

// TestStdioProtocol_StdoutHygiene checks that stdout carries nothing but
// JSON-RPC frames; logs belong on stderr.
func TestStdioProtocol_StdoutHygiene(t *testing.T) {
	binaryPath := serverBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(stdioEnv(), "LIVESYNC_LOG_LEVEL=debug")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	requests := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}
	for _, req := range requests {
		_, err := io.WriteString(stdin, req+"\n")
		require.NoError(t, err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	ids := map[float64]bool{}
	for len(ids) < 2 {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stdout closed early; stderr: %s", stderr.String())
			var frame struct {
				JSONRPC string  `json:"jsonrpc"`
				ID      float64 `json:"id"`
			}
			require.NoError(t, json.Unmarshal([]byte(line), &frame), "non JSON-RPC line on stdout: %q", line)
			require.Equal(t, "2.0", frame.JSONRPC)
			if frame.ID != 0 {
				ids[frame.ID] = true
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for responses; stderr: %s", stderr.String())
		}
	}
	require.NoError(t, stdin.Close())
}
