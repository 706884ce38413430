package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuditService_RecordAndTail(t *testing.T) {
	ctx := context.Background()
	owner := access.Actor{UID: "owner"}

	repo := &mocks.AuditRepository{}
	guard := &mocks.Guard{}
	entry := &audit.Entry{
		WorkspaceID: "ws1",
		ActorUID:    "owner",
		Action:      audit.ActionStateUpsert,
	}

	repo.On("Log", ctx, entry).Return(nil)
	repo.On("List", ctx, "ws1", audit.ListOptions{Limit: 50}).Return([]audit.Entry{*entry}, nil)
	guard.On("RequireOwner", ctx, "ws1", owner).Return(nil)

	svc := audit.NewService(repo, guard, nil)
	require.NoError(t, svc.Record(ctx, entry))
	require.False(t, entry.CreatedAt.IsZero())
	require.Equal(t, "{}", entry.Details)

	entries, err := svc.Tail(ctx, "ws1", owner, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestAuditService_RecordRejectsIncompleteEntries(t *testing.T) {
	svc := audit.NewService(&mocks.AuditRepository{}, nil, nil)
	require.ErrorIs(t, svc.Record(context.Background(), nil), audit.ErrInvalidInput)
	require.ErrorIs(t, svc.Record(context.Background(), &audit.Entry{Action: audit.ActionSnapshotSave}), audit.ErrInvalidInput)
}

func TestAuditService_TailIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	operator := access.Actor{Email: "op@example.com"}

	repo := &mocks.AuditRepository{}
	guard := &mocks.Guard{}
	guard.On("RequireOwner", ctx, "ws1", operator).Return(access.ErrForbidden)

	svc := audit.NewService(repo, guard, nil)
	_, err := svc.Tail(ctx, "ws1", operator, 10)
	require.ErrorIs(t, err, access.ErrForbidden)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuditService_Summarize(t *testing.T) {
	ctx := context.Background()
	owner := access.Actor{UID: "owner"}
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	from := to.Add(-time.Hour)

	repo := &mocks.AuditRepository{}
	guard := &mocks.Guard{}
	guard.On("RequireOwner", ctx, "ws1", owner).Return(nil)
	repo.On("CountByAction", ctx, "ws1", from, to).Return([]audit.ActionCount{
		{Action: audit.ActionStateUpsert, Count: 3},
		{Action: audit.ActionRemoteCommand, Count: 2},
	}, nil)

	svc := audit.NewService(repo, guard, nil)
	summary, err := svc.Summarize(ctx, "ws1", owner, from, to)
	require.NoError(t, err)
	require.Equal(t, 5, summary.Total)
	require.Len(t, summary.Actions, 2)

	_, err = svc.Summarize(ctx, "ws1", owner, to, from)
	require.ErrorIs(t, err, audit.ErrInvalidInput)
}
