package mcp

import (
	"context"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/live"
)

// SessionInput addresses one session.
type SessionInput struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"workspace id"`
	SessionID   string `json:"session_id" jsonschema:"session id"`
}

// UpsertInput merges partial state into a session.
type UpsertInput struct {
	WorkspaceID string         `json:"workspace_id" jsonschema:"workspace id"`
	SessionID   string         `json:"session_id" jsonschema:"session id"`
	State       map[string]any `json:"state" jsonschema:"top-level keys to overwrite; omitted keys are kept"`
}

// CommandInput issues a remote command.
type CommandInput struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"workspace id"`
	SessionID   string `json:"session_id" jsonschema:"session id"`
	Command     string `json:"command" jsonschema:"NEXT, PREV or BLACKOUT"`
}

// SummaryInput selects an audit range.
type SummaryInput struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"workspace id"`
	From        string `json:"from,omitempty" jsonschema:"range start, RFC3339 or epoch ms; defaults to 30 days before to"`
	To          string `json:"to,omitempty" jsonschema:"range end, RFC3339 or epoch ms; defaults to now"`
}

// RenderSummary describes what the outputs would show for a state.
type RenderSummary struct {
	Renderable     bool   `json:"renderable"`
	Blackout       bool   `json:"blackout"`
	RoutingMode    string `json:"routing_mode"`
	ItemID         string `json:"item_id,omitempty"`
	ItemTitle      string `json:"item_title,omitempty"`
	SlideIndex     int    `json:"slide_index"`
	SlideLabel     string `json:"slide_label,omitempty"`
	Substituted    bool   `json:"substituted,omitempty"`
	HideBackground bool   `json:"hide_background,omitempty"`
	LowerThirds    bool   `json:"lower_thirds,omitempty"`
}

// StateOutput is a session state with its resolved render target.
type StateOutput struct {
	WorkspaceID string         `json:"workspace_id"`
	SessionID   string         `json:"session_id"`
	Version     int64          `json:"version"`
	State       map[string]any `json:"state"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Render      RenderSummary  `json:"render"`
}

// CommandOutput confirms an issued command.
type CommandOutput struct {
	Command         string `json:"command"`
	RemoteCommandAt int64  `json:"remote_command_at"`
	Version         int64  `json:"version"`
}

// SummaryOutput is an audit summary.
type SummaryOutput struct {
	Summary audit.Summary `json:"summary"`
}

func registerTools(server *sdkmcp.Server, svc Services) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "live_state_get",
		Description: "Read the live state of a session and what the outputs are showing",
	}, liveStateGetHandler(svc.Live))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "live_state_upsert",
		Description: "Merge top-level keys into a session's live state (owner or allowed operator)",
	}, liveStateUpsertHandler(svc.Live))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "live_command_issue",
		Description: "Send NEXT, PREV or BLACKOUT to the controller of a session",
	}, liveCommandHandler(svc.Live))

	if svc.Audit != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "audit_summary",
			Description: "Count audited mutations of a workspace by action (owner only)",
		}, auditSummaryHandler(svc.Audit))
	}
}

func liveStateGetHandler(svc LiveStateService) sdkmcp.ToolHandlerFor[SessionInput, StateOutput] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SessionInput) (*sdkmcp.CallToolResult, StateOutput, error) {
		state, err := svc.ReadState(ctx, in.WorkspaceID, in.SessionID)
		if err != nil {
			return nil, StateOutput{}, MapError(err)
		}
		return nil, stateOutput(state), nil
	}
}

func liveStateUpsertHandler(svc LiveStateService) sdkmcp.ToolHandlerFor[UpsertInput, StateOutput] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in UpsertInput) (*sdkmcp.CallToolResult, StateOutput, error) {
		state, err := svc.UpsertState(ctx, in.WorkspaceID, in.SessionID, getActor(ctx), in.State)
		if err != nil {
			return nil, StateOutput{}, MapError(err)
		}
		return nil, stateOutput(state), nil
	}
}

func liveCommandHandler(svc LiveStateService) sdkmcp.ToolHandlerFor[CommandInput, CommandOutput] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in CommandInput) (*sdkmcp.CallToolResult, CommandOutput, error) {
		state, err := svc.IssueCommand(ctx, in.WorkspaceID, in.SessionID, getActor(ctx), in.Command)
		if err != nil {
			return nil, CommandOutput{}, MapError(err)
		}
		snap := liveSnapshot(state)
		return nil, CommandOutput{
			Command:         snap.RemoteCommand,
			RemoteCommandAt: snap.RemoteCommandAt,
			Version:         state.Version,
		}, nil
	}
}

func auditSummaryHandler(svc AuditService) sdkmcp.ToolHandlerFor[SummaryInput, SummaryOutput] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SummaryInput) (*sdkmcp.CallToolResult, SummaryOutput, error) {
		from, ok := parseTime(in.From)
		if !ok {
			return nil, SummaryOutput{}, &APIError{Code: "INVALID_INPUT", Message: "from must be RFC3339 or epoch milliseconds"}
		}
		to, ok := parseTime(in.To)
		if !ok {
			return nil, SummaryOutput{}, &APIError{Code: "INVALID_INPUT", Message: "to must be RFC3339 or epoch milliseconds"}
		}
		summary, err := svc.Summarize(ctx, in.WorkspaceID, getActor(ctx), from, to)
		if err != nil {
			return nil, SummaryOutput{}, MapError(err)
		}
		return nil, SummaryOutput{Summary: *summary}, nil
	}
}

func liveSnapshot(state *livestate.SessionState) live.Snapshot {
	return live.FromState(state.State)
}

func stateOutput(state *livestate.SessionState) StateOutput {
	snap := liveSnapshot(state)
	target := live.ResolveRoute(snap)
	render := RenderSummary{
		Renderable:     snap.Renderable(),
		Blackout:       target.Blackout,
		RoutingMode:    string(target.RoutingMode),
		SlideIndex:     target.SlideIndex,
		Substituted:    target.Substituted,
		HideBackground: target.HideBackground,
		LowerThirds:    target.LowerThirds,
	}
	if target.Item != nil {
		render.ItemID = target.Item.ID
		render.ItemTitle = target.Item.Title
	}
	if target.Slide != nil {
		render.SlideLabel = target.Slide.Label
	}
	return StateOutput{
		WorkspaceID: state.WorkspaceID,
		SessionID:   state.SessionID,
		Version:     state.Version,
		State:       state.State,
		UpdatedAt:   state.UpdatedAt,
		Render:      render,
	}
}

func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	ms := live.TimestampMillis(raw)
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
