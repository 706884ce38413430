package audience_test

import (
	"context"
	"testing"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/repository"
	"github.com/rpggio/livesync/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	require.NoError(t, audience.ValidateTransition(audience.StatusPending, audience.StatusApproved))
	require.NoError(t, audience.ValidateTransition(audience.StatusPending, audience.StatusDismissed))
	require.NoError(t, audience.ValidateTransition(audience.StatusApproved, audience.StatusProjected))
	require.ErrorIs(t, audience.ValidateTransition(audience.StatusProjected, audience.StatusApproved), audience.ErrInvalidTransition)
	require.ErrorIs(t, audience.ValidateTransition(audience.StatusApproved, audience.StatusApproved), audience.ErrInvalidTransition)
	require.ErrorIs(t, audience.ValidateTransition(audience.StatusPending, "archived"), audience.ErrInvalidInput)
}

func TestValidateSubmission(t *testing.T) {
	blank := "   "
	req, err := audience.ValidateSubmission(audience.SubmitRequest{Text: " Pray for rain ", SubmitterName: &blank})
	require.NoError(t, err)
	require.Equal(t, "Pray for rain", req.Text)
	require.Equal(t, "general", req.Category)
	require.Nil(t, req.SubmitterName)

	_, err = audience.ValidateSubmission(audience.SubmitRequest{Text: "  "})
	require.ErrorIs(t, err, audience.ErrInvalidInput)
}

func TestAudienceService_Submit(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.MessageRepository{}
	repo.On("Create", ctx, mock.MatchedBy(func(m *audience.Message) bool {
		return m.WorkspaceID == "ws1" && m.Status == audience.StatusPending && m.Category == "question" && m.ID != ""
	})).Return(nil).Once()
	repo.On("Create", ctx, mock.Anything).Return(repository.ErrForeignKeyViolation)

	svc := audience.NewService(repo, &mocks.Authorizer{}, nil, nil)
	msg, err := svc.Submit(ctx, "ws1", audience.SubmitRequest{Category: "Question", Text: "When is lunch?"})
	require.NoError(t, err)
	require.Equal(t, audience.StatusPending, msg.Status)

	_, err = svc.Submit(ctx, "missing", audience.SubmitRequest{Text: "hello"})
	require.ErrorIs(t, err, audience.ErrWorkspaceNotFound)
}

func TestAudienceService_ModerateForwardOnly(t *testing.T) {
	ctx := context.Background()
	actor := access.Actor{Email: "op@example.com"}

	repo := &mocks.MessageRepository{}
	auth := &mocks.Authorizer{}
	recorder := &mocks.AuditRecorder{}

	auth.On("Authorize", ctx, "ws1", actor, false).Return(&workspace.Workspace{ID: "ws1"}, nil)
	repo.On("Get", ctx, "ws1", "m1").Return(&audience.Message{ID: "m1", WorkspaceID: "ws1", Status: audience.StatusApproved}, nil)
	repo.On("UpdateStatus", ctx, "ws1", "m1", audience.StatusProjected, mock.Anything).Return(nil)
	recorder.On("Record", ctx, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == audit.ActionMessageModerated
	})).Return(nil)

	svc := audience.NewService(repo, auth, recorder, nil)
	msg, err := svc.Moderate(ctx, "ws1", "m1", actor, audience.StatusProjected)
	require.NoError(t, err)
	require.Equal(t, audience.StatusProjected, msg.Status)

	_, err = svc.Moderate(ctx, "ws1", "m1", actor, audience.StatusPending)
	require.ErrorIs(t, err, audience.ErrInvalidTransition)
	repo.AssertNumberOfCalls(t, "UpdateStatus", 1)
	recorder.AssertNumberOfCalls(t, "Record", 1)
}

func TestAudienceService_ListAndDeleteRequireOperator(t *testing.T) {
	ctx := context.Background()
	anon := access.Actor{}

	repo := &mocks.MessageRepository{}
	auth := &mocks.Authorizer{}
	auth.On("Authorize", ctx, "ws1", anon, false).Return(nil, access.ErrAuthRequired)

	svc := audience.NewService(repo, auth, nil, nil)
	_, err := svc.List(ctx, "ws1", anon, audience.ListOptions{})
	require.ErrorIs(t, err, access.ErrAuthRequired)
	require.ErrorIs(t, svc.Delete(ctx, "ws1", "m1", anon), access.ErrAuthRequired)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAudienceService_ListAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	owner := access.Actor{UID: "ws1"}
	pending := audience.StatusPending

	repo := &mocks.MessageRepository{}
	auth := &mocks.Authorizer{}
	auth.On("Authorize", ctx, "ws1", owner, false).Return(&workspace.Workspace{ID: "ws1"}, nil)
	repo.On("List", ctx, "ws1", audience.ListOptions{Status: &pending, Limit: 100}).Return(nil, nil)

	svc := audience.NewService(repo, auth, nil, nil)
	msgs, err := svc.List(ctx, "ws1", owner, audience.ListOptions{Status: &pending})
	require.NoError(t, err)
	require.NotNil(t, msgs)
	require.Empty(t, msgs)
}
