package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `livesync keeps presentation surfaces converged on one live state per (workspace, session).

Core concepts:
- Session state: a JSON object with a version that increases by one per write. Writes merge top-level keys; omitted keys are kept.
- Render fields: scheduleSnapshot, activeItemId, activeSlideIndex, blackout, routingMode (PROJECTOR|STREAM|LOBBY), lowerThirdsEnabled, timer*.
- Remote command: NEXT, PREV or BLACKOUT stamped with remoteCommandAt; the controller runs each stamp at most once.

Workflow:
1) Read: live_state_get shows the state and the resolved render target.
2) Nudge: live_command_issue for slide navigation; prefer it over rewriting activeSlideIndex.
3) Write: live_state_upsert only with keys you intend to change.
4) Review: audit_summary (owner only).

Identity: HTTP callers send x-user-uid / x-user-email (or a bearer token). Writes need the workspace owner or an allow-listed operator email.

Docs:
- livesync://docs/state-keys
- livesync://docs/routing
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "livesync://docs/state-keys",
		Name:        "docs_state_keys",
		Title:       "Session state keys",
		Description: "Keys the outputs read from session state and how they are interpreted.",
		Content: `# Session state keys

| Key | Type | Notes |
|---|---|---|
| scheduleSnapshot | array of items | each item: id, title, type, slides[] (id, label, content) |
| activeItemId | string | must match an item in the same scheduleSnapshot |
| activeSlideIndex | int | index into the active item's slides |
| blackout | bool | outputs go black; still counts as a usable state |
| routingMode | PROJECTOR, STREAM, LOBBY | defaults to PROJECTOR |
| lowerThirdsEnabled | bool | forced on in STREAM mode |
| timerMode, timerDurationSec, timerStartedAt, timerRunning, timerLabel | | stage timer |
| updatedAt | epoch ms or RFC3339 | used to rank competing sources |
| remoteCommand, remoteCommandAt | | written by live_command_issue |
| controllerOwnerEmail, controllerHeartbeatAt | | controller heartbeat |

A state whose activeItemId or activeSlideIndex does not resolve is not renderable. Surfaces keep showing the last renderable state instead of going blank.
`,
	},
	{
		URI:         "livesync://docs/routing",
		Name:        "docs_routing",
		Title:       "Output routing",
		Description: "How routingMode changes what outputs show.",
		Content: `# Output routing

- PROJECTOR: show the active item and slide.
- LOBBY: show the first ANNOUNCEMENT item's first slide; fall back to the active item and slide when there is none.
- STREAM: show the active slide without its background and with lower thirds forced on.

Blackout applies in every mode.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
