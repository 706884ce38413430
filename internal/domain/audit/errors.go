package audit

import "errors"

var (
	// ErrInvalidInput indicates an invalid audit entry or query.
	ErrInvalidInput = errors.New("invalid audit input")
)
