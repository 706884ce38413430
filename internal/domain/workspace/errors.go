package workspace

import "errors"

var (
	// ErrWorkspaceNotFound indicates the workspace doesn't exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrSnapshotNotFound indicates the workspace has no snapshots yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInvalidInput indicates invalid workspace input.
	ErrInvalidInput = errors.New("invalid workspace input")
)
