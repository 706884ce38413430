package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to tool error codes. Unknown errors pass
// through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, access.ErrAuthRequired):
		return &APIError{Code: "AUTH_REQUIRED", Message: "identity required", RecoveryHint: "Send x-user-uid or x-user-email headers"}
	case errors.Is(err, access.ErrForbidden):
		return &APIError{Code: "FORBIDDEN", Message: "not the owner or an allowed operator", RecoveryHint: "Ask the owner to add your email to allowedOperatorEmails"}
	case errors.Is(err, livestate.ErrInvalidCommand):
		return &APIError{Code: "INVALID_COMMAND", Message: "unknown command", RecoveryHint: "Use NEXT, PREV or BLACKOUT"}
	case errors.Is(err, livestate.ErrInvalidInput),
		errors.Is(err, workspace.ErrInvalidInput),
		errors.Is(err, audit.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, workspace.ErrWorkspaceNotFound):
		return &APIError{Code: "NOT_FOUND", Message: "workspace not found"}
	default:
		return err
	}
}
