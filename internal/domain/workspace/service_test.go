package workspace_test

import (
	"context"
	"testing"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/repository"
	"github.com/rpggio/livesync/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newWorkspace(operators string) *workspace.Workspace {
	return &workspace.Workspace{
		ID:       "owner",
		OwnerUID: "owner",
		Settings: map[string]any{workspace.SettingAllowedOperators: operators},
	}
}

func TestWorkspaceService_Authorize(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	repo.On("Get", ctx, "owner").Return(newWorkspace("op@example.com:editor"), nil)

	svc := workspace.NewService(repo, &mocks.SnapshotRepository{}, nil, nil)

	_, err := svc.Authorize(ctx, "owner", access.Actor{UID: "owner"}, false)
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, "owner", access.Actor{UID: "x", Email: "Op@Example.com"}, false)
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, "owner", access.Actor{UID: "x", Email: "other@example.com"}, false)
	require.ErrorIs(t, err, access.ErrForbidden)
	_, err = svc.Authorize(ctx, "owner", access.Actor{}, false)
	require.ErrorIs(t, err, access.ErrAuthRequired)
}

func TestWorkspaceService_AuthorizeBootstrap(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	repo.On("Get", ctx, "alice").Return(nil, repository.ErrNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(ws *workspace.Workspace) bool {
		return ws.ID == "alice" && ws.OwnerUID == "alice"
	})).Return(nil)

	svc := workspace.NewService(repo, &mocks.SnapshotRepository{}, nil, nil)

	_, err := svc.Authorize(ctx, "alice", access.Actor{UID: "bob"}, true)
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = svc.Authorize(ctx, "alice", access.Actor{UID: "alice"}, false)
	require.ErrorIs(t, err, workspace.ErrWorkspaceNotFound)

	ws, err := svc.Authorize(ctx, "alice", access.Actor{UID: "alice"}, true)
	require.NoError(t, err)
	require.Equal(t, "alice", ws.OwnerUID)
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestWorkspaceService_UpdateSettingsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	recorder := &mocks.AuditRecorder{}
	repo.On("Get", ctx, "owner").Return(newWorkspace("op@example.com"), nil)

	svc := workspace.NewService(repo, &mocks.SnapshotRepository{}, recorder, nil)
	_, err := svc.UpdateSettings(ctx, "owner", access.Actor{Email: "op@example.com"}, map[string]any{"stageProfile": "minimal"})
	require.ErrorIs(t, err, access.ErrForbidden)
	repo.AssertNotCalled(t, "MergeSettings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestWorkspaceService_UpdateSettingsNormalizesLayoutAndAudits(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	recorder := &mocks.AuditRecorder{}
	updated := newWorkspace("")

	repo.On("Get", ctx, "owner").Return(newWorkspace(""), nil)
	repo.On("MergeSettings", ctx, "owner", mock.MatchedBy(func(partial map[string]any) bool {
		layout, ok := partial[workspace.SettingStageTimerLayout].(map[string]any)
		return ok && layout["fontScale"] == 1.0 && layout["width"] == 500.0
	}), mock.Anything).Return(updated, nil)
	recorder.On("Record", ctx, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == audit.ActionSettingsUpdate && e.WorkspaceID == "owner" && e.SessionID == nil
	})).Return(nil)

	svc := workspace.NewService(repo, &mocks.SnapshotRepository{}, recorder, nil)
	ws, err := svc.UpdateSettings(ctx, "owner", access.Actor{UID: "owner"}, map[string]any{
		workspace.SettingStageTimerLayout: map[string]any{"width": 500.0},
	})
	require.NoError(t, err)
	require.Same(t, updated, ws)
	recorder.AssertNumberOfCalls(t, "Record", 1)
}

func TestWorkspaceService_SaveSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	snaps := &mocks.SnapshotRepository{}
	recorder := &mocks.AuditRecorder{}

	repo.On("Get", ctx, "owner").Return(newWorkspace(""), nil)
	snaps.On("Append", ctx, mock.AnythingOfType("*workspace.Snapshot"), 100).Run(func(args mock.Arguments) {
		args.Get(1).(*workspace.Snapshot).Version = 4
	}).Return(nil)
	recorder.On("Record", ctx, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == audit.ActionSnapshotSave && e.Details == `{"version":4}`
	})).Return(nil)

	svc := workspace.NewService(repo, snaps, recorder, nil)
	snap, err := svc.SaveSnapshot(ctx, "owner", access.Actor{UID: "owner"}, map[string]any{"schedule": []any{}})
	require.NoError(t, err)
	require.Equal(t, int64(4), snap.Version)
	require.Equal(t, "owner", snap.CreatedBy)

	_, err = svc.SaveSnapshot(ctx, "owner", access.Actor{UID: "owner"}, nil)
	require.ErrorIs(t, err, workspace.ErrInvalidInput)
}

func TestWorkspaceService_GetIncludesLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	snaps := &mocks.SnapshotRepository{}

	repo.On("Get", ctx, "owner").Return(newWorkspace("a@example.com:viewer, b@example.com"), nil)
	snaps.On("Latest", ctx, "owner").Return(nil, repository.ErrNotFound).Once()
	snaps.On("Latest", ctx, "owner").Return(&workspace.Snapshot{Version: 2}, nil)

	svc := workspace.NewService(repo, snaps, nil, nil)
	view, err := svc.Get(ctx, "owner", access.Actor{Email: "b@example.com"})
	require.NoError(t, err)
	require.Nil(t, view.LatestSnapshot)
	require.Len(t, view.Operators, 2)
	require.Equal(t, 320.0, view.StageTimerLayout.Width)

	view, err = svc.Get(ctx, "owner", access.Actor{UID: "owner"})
	require.NoError(t, err)
	require.Equal(t, int64(2), view.LatestSnapshot.Version)
}

func TestWorkspaceService_RequireOwner(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.WorkspaceRepository{}
	repo.On("Get", ctx, "owner").Return(newWorkspace("op@example.com"), nil)
	repo.On("Get", ctx, "fresh").Return(nil, repository.ErrNotFound)

	svc := workspace.NewService(repo, &mocks.SnapshotRepository{}, nil, nil)
	require.NoError(t, svc.RequireOwner(ctx, "owner", access.Actor{UID: "owner"}))
	require.ErrorIs(t, svc.RequireOwner(ctx, "owner", access.Actor{Email: "op@example.com"}), access.ErrForbidden)
	require.NoError(t, svc.RequireOwner(ctx, "fresh", access.Actor{UID: "fresh"}))
	require.ErrorIs(t, svc.RequireOwner(ctx, "fresh", access.Actor{UID: "owner"}), access.ErrForbidden)
}
