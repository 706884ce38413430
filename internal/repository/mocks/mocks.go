package mocks

import (
	"context"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/stretchr/testify/mock"
)

// WorkspaceRepository is a mock for workspace.Repository.
type WorkspaceRepository struct {
	mock.Mock
}

func (m *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace) error {
	args := m.Called(ctx, ws)
	return args.Error(0)
}

func (m *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	args := m.Called(ctx, id)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkspaceRepository) MergeSettings(ctx context.Context, id string, partial map[string]any, now time.Time) (*workspace.Workspace, error) {
	args := m.Called(ctx, id, partial, now)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

// SnapshotRepository is a mock for workspace.SnapshotRepository.
type SnapshotRepository struct {
	mock.Mock
}

func (m *SnapshotRepository) Append(ctx context.Context, snap *workspace.Snapshot, keep int) error {
	args := m.Called(ctx, snap, keep)
	return args.Error(0)
}

func (m *SnapshotRepository) Latest(ctx context.Context, workspaceID string) (*workspace.Snapshot, error) {
	args := m.Called(ctx, workspaceID)
	if snap, ok := args.Get(0).(*workspace.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

// SessionStateRepository is a mock for livestate.Repository.
type SessionStateRepository struct {
	mock.Mock
}

func (m *SessionStateRepository) Get(ctx context.Context, workspaceID, sessionID string) (*livestate.SessionState, error) {
	args := m.Called(ctx, workspaceID, sessionID)
	if state, ok := args.Get(0).(*livestate.SessionState); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStateRepository) Merge(ctx context.Context, workspaceID, sessionID string, partial map[string]any, now time.Time) (*livestate.SessionState, error) {
	args := m.Called(ctx, workspaceID, sessionID, partial, now)
	if state, ok := args.Get(0).(*livestate.SessionState); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}

// MessageRepository is a mock for audience.Repository.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, msg *audience.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepository) Get(ctx context.Context, workspaceID, id string) (*audience.Message, error) {
	args := m.Called(ctx, workspaceID, id)
	if msg, ok := args.Get(0).(*audience.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MessageRepository) List(ctx context.Context, workspaceID string, opts audience.ListOptions) ([]audience.Message, error) {
	args := m.Called(ctx, workspaceID, opts)
	if list, ok := args.Get(0).([]audience.Message); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MessageRepository) UpdateStatus(ctx context.Context, workspaceID, id string, status audience.Status, now time.Time) error {
	args := m.Called(ctx, workspaceID, id, status, now)
	return args.Error(0)
}

func (m *MessageRepository) Delete(ctx context.Context, workspaceID, id string) error {
	args := m.Called(ctx, workspaceID, id)
	return args.Error(0)
}

// AuditRepository is a mock for audit.Repository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Log(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditRepository) List(ctx context.Context, workspaceID string, opts audit.ListOptions) ([]audit.Entry, error) {
	args := m.Called(ctx, workspaceID, opts)
	if list, ok := args.Get(0).([]audit.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AuditRepository) CountByAction(ctx context.Context, workspaceID string, from, to time.Time) ([]audit.ActionCount, error) {
	args := m.Called(ctx, workspaceID, from, to)
	if list, ok := args.Get(0).([]audit.ActionCount); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// AuditRecorder is a mock for the services' audit hook.
type AuditRecorder struct {
	mock.Mock
}

func (m *AuditRecorder) Record(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Guard is a mock for audit.Guard.
type Guard struct {
	mock.Mock
}

func (m *Guard) RequireOwner(ctx context.Context, workspaceID string, actor access.Actor) error {
	args := m.Called(ctx, workspaceID, actor)
	return args.Error(0)
}

// Authorizer is a mock for the workspace permission check.
type Authorizer struct {
	mock.Mock
}

func (m *Authorizer) Authorize(ctx context.Context, workspaceID string, actor access.Actor, bootstrap bool) (*workspace.Workspace, error) {
	args := m.Called(ctx, workspaceID, actor, bootstrap)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

// Publisher is a mock for livestate.Publisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(state livestate.SessionState) {
	m.Called(state)
}
