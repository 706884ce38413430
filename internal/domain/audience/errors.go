package audience

import "errors"

var (
	// ErrMessageNotFound indicates the message doesn't exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrWorkspaceNotFound indicates the target workspace doesn't exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrInvalidInput indicates invalid message input.
	ErrInvalidInput = errors.New("invalid message input")
	// ErrInvalidTransition indicates a status change that moves backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)
