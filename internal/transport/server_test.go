package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/realtime"
	"github.com/stretchr/testify/require"
)

// fakeLive keeps session states in memory and allows only the UID "owner".
type fakeLive struct {
	mu     sync.Mutex
	states map[livestate.Key]*livestate.SessionState
	hub    *realtime.Hub
	fail   error
}

func newFakeLive(hub *realtime.Hub) *fakeLive {
	return &fakeLive{states: map[livestate.Key]*livestate.SessionState{}, hub: hub}
}

func (f *fakeLive) ReadState(_ context.Context, ws, sid string) (*livestate.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[livestate.Key{WorkspaceID: ws, SessionID: sid}]; ok {
		cp := *s
		cp.State = maps.Clone(s.State)
		return &cp, nil
	}
	return &livestate.SessionState{WorkspaceID: ws, SessionID: sid, State: map[string]any{}}, nil
}

func (f *fakeLive) UpsertState(_ context.Context, ws, sid string, actor access.Actor, partial map[string]any) (*livestate.SessionState, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if actor.Anonymous() {
		return nil, access.ErrAuthRequired
	}
	if actor.UID != "owner" {
		return nil, access.ErrForbidden
	}
	if len(partial) == 0 {
		return nil, livestate.ErrInvalidInput
	}

	f.mu.Lock()
	key := livestate.Key{WorkspaceID: ws, SessionID: sid}
	s, ok := f.states[key]
	if !ok {
		s = &livestate.SessionState{WorkspaceID: ws, SessionID: sid, State: map[string]any{}}
		f.states[key] = s
	}
	for k, v := range partial {
		s.State[k] = v
	}
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	cp.State = maps.Clone(s.State)
	f.mu.Unlock()

	if f.hub != nil {
		f.hub.Publish(cp)
	}
	return &cp, nil
}

func (f *fakeLive) IssueCommand(ctx context.Context, ws, sid string, actor access.Actor, raw string) (*livestate.SessionState, error) {
	cmd, err := livestate.ParseCommand(raw)
	if err != nil {
		return nil, err
	}
	return f.UpsertState(ctx, ws, sid, actor, map[string]any{"remoteCommand": string(cmd), "remoteCommandAt": time.Now().UnixMilli()})
}

type fakeWorkspaces struct{}

func (fakeWorkspaces) Get(_ context.Context, id string, actor access.Actor) (*workspace.View, error) {
	if actor.UID != "owner" {
		return nil, access.ErrForbidden
	}
	return &workspace.View{Workspace: workspace.Workspace{ID: id, OwnerUID: "owner"}}, nil
}

func (fakeWorkspaces) UpdateSettings(context.Context, string, access.Actor, map[string]any) (*workspace.Workspace, error) {
	return nil, errors.New("disk on fire")
}

func (fakeWorkspaces) SaveSnapshot(_ context.Context, id string, _ access.Actor, payload map[string]any) (*workspace.Snapshot, error) {
	return &workspace.Snapshot{WorkspaceID: id, Version: 1, Payload: payload}, nil
}

func (fakeWorkspaces) LatestSnapshot(context.Context, string, access.Actor) (*workspace.Snapshot, error) {
	return nil, workspace.ErrSnapshotNotFound
}

type fakeAudience struct{}

func (fakeAudience) Submit(_ context.Context, ws string, req audience.SubmitRequest) (*audience.Message, error) {
	req, err := audience.ValidateSubmission(req)
	if err != nil {
		return nil, err
	}
	return &audience.Message{ID: "m1", WorkspaceID: ws, Text: req.Text, Category: req.Category, Status: audience.StatusPending}, nil
}

func (fakeAudience) List(context.Context, string, access.Actor, audience.ListOptions) ([]audience.Message, error) {
	return []audience.Message{}, nil
}

func (fakeAudience) Moderate(context.Context, string, string, access.Actor, audience.Status) (*audience.Message, error) {
	return nil, audience.ErrInvalidTransition
}

func (fakeAudience) Delete(context.Context, string, string, access.Actor) error {
	return audience.ErrMessageNotFound
}

func newTestServer(t *testing.T, live *fakeLive, hub *realtime.Hub) *httptest.Server {
	t.Helper()
	router := NewServer(Services{
		Workspaces: fakeWorkspaces{},
		Live:       live,
		Audience:   fakeAudience{},
		Hub:        hub,
	}, Options{StreamKeepAlive: 50 * time.Millisecond})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, uid, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set(HeaderUserUID, uid)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestHTTPServer_Health(t *testing.T) {
	server := newTestServer(t, newFakeLive(nil), nil)
	status, body := doJSON(t, http.MethodGet, server.URL+"/api/health", "", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["ok"])
}

func TestHTTPServer_StateRoundTrip(t *testing.T) {
	server := newTestServer(t, newFakeLive(nil), nil)
	base := server.URL + "/api/workspaces/owner/sessions/s1"

	status, body := doJSON(t, http.MethodGet, base+"/state", "", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 0.0, body["version"])

	status, body = doJSON(t, http.MethodPost, base+"/state", "owner", `{"state":{"activeItemId":"a"}}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1.0, body["version"])

	status, body = doJSON(t, http.MethodPost, base+"/state", "owner", `{"state":{"blackout":true}}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2.0, body["version"])
	state := body["state"].(map[string]any)
	require.Equal(t, "a", state["activeItemId"])
	require.Equal(t, true, state["blackout"])
}

func TestHTTPServer_ErrorCodes(t *testing.T) {
	live := newFakeLive(nil)
	server := newTestServer(t, live, nil)
	base := server.URL + "/api/workspaces/owner"

	status, body := doJSON(t, http.MethodPost, base+"/sessions/s1/state", "", `{"state":{"a":1}}`)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "AUTH_REQUIRED", body["error"])
	require.Equal(t, false, body["ok"])

	status, body = doJSON(t, http.MethodPost, base+"/sessions/s1/state", "intruder", `{"state":{"a":1}}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", body["error"])

	status, body = doJSON(t, http.MethodPost, base+"/sessions/s1/commands", "owner", `{"command":"jump"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_COMMAND", body["error"])

	status, body = doJSON(t, http.MethodPost, base+"/sessions/s1/state", "owner", `not json`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_INPUT", body["error"])

	status, body = doJSON(t, http.MethodPatch, base+"/settings", "owner", `{"settings":{"a":1}}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "UPDATE_SETTINGS_FAILED", body["error"])

	status, body = doJSON(t, http.MethodGet, base+"/snapshots/latest", "owner", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", body["error"])

	status, body = doJSON(t, http.MethodPatch, base+"/messages/m1", "owner", `{"status":"pending"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_INPUT", body["error"])

	live.fail = errors.New("db down")
	status, body = doJSON(t, http.MethodPost, base+"/sessions/s1/state", "owner", `{"state":{"a":1}}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "UPSERT_STATE_FAILED", body["error"])
}

func TestHTTPServer_CommandResponse(t *testing.T) {
	server := newTestServer(t, newFakeLive(nil), nil)
	status, body := doJSON(t, http.MethodPost, server.URL+"/api/workspaces/owner/sessions/s1/commands", "owner", `{"command":" next "}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "NEXT", body["command"])
	require.Greater(t, body["remoteCommandAt"].(float64), 0.0)
}

func TestHTTPServer_SubmitMessageAnonymous(t *testing.T) {
	server := newTestServer(t, newFakeLive(nil), nil)
	status, body := doJSON(t, http.MethodPost, server.URL+"/api/workspaces/owner/messages", "", `{"text":"hello","category":"Prayer"}`)
	require.Equal(t, http.StatusCreated, status)
	msg := body["message"].(map[string]any)
	require.Equal(t, "pending", msg["status"])
	require.Equal(t, "prayer", msg["category"])
}

func TestHTTPServer_Stream(t *testing.T) {
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)
	live := newFakeLive(hub)
	server := newTestServer(t, live, hub)

	_, err := live.UpsertState(context.Background(), "owner", "s1", access.Actor{UID: "owner"}, map[string]any{"activeSlideIndex": 0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/workspaces/owner/sessions/s1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	require.Equal(t, 1.0, first["version"])

	require.Eventually(t, func() bool { return hub.Subscribers("owner", "s1") == 1 }, time.Second, 10*time.Millisecond)
	_, err = live.UpsertState(context.Background(), "owner", "s1", access.Actor{UID: "owner"}, map[string]any{"activeSlideIndex": 1})
	require.NoError(t, err)

	second := readEvent(t, reader)
	require.Equal(t, 2.0, second["version"])
	require.Equal(t, 1.0, second["state"].(map[string]any)["activeSlideIndex"])
}

// readEvent returns the data of the next state event, skipping comments.
func readEvent(t *testing.T, reader *bufio.Reader) map[string]any {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: "); ok {
			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(data), &decoded))
			return decoded
		}
	}
}

func TestMapError(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, MapError(access.ErrAuthRequired, "X").Status)
	require.Equal(t, "FORBIDDEN", MapError(access.ErrForbidden, "X").Code)
	require.Equal(t, "NOT_FOUND", MapError(audience.ErrMessageNotFound, "X").Code)
	require.Equal(t, "READ_STATE_FAILED", MapError(errors.New("boom"), "READ_STATE").Code)
}
