package livestate

import "errors"

var (
	// ErrInvalidCommand indicates an empty or unknown remote command.
	ErrInvalidCommand = errors.New("invalid remote command")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
)
