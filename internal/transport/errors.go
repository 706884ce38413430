package transport

import (
	"errors"
	"net/http"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/domain/audience"
	"github.com/rpggio/livesync/internal/domain/audit"
	"github.com/rpggio/livesync/internal/domain/livestate"
	"github.com/rpggio/livesync/internal/domain/workspace"
	"github.com/rpggio/livesync/internal/repository"
)

// APIError is an error response body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// MapError maps domain errors to API codes. Unknown errors become a 500
// with the code <op>_FAILED.
func MapError(err error, op string) APIError {
	switch {
	case errors.Is(err, access.ErrAuthRequired):
		return APIError{http.StatusUnauthorized, "AUTH_REQUIRED", "sign in required"}
	case errors.Is(err, access.ErrForbidden):
		return APIError{http.StatusForbidden, "FORBIDDEN", "not the owner or an allowed operator"}
	case errors.Is(err, livestate.ErrInvalidCommand):
		return APIError{http.StatusBadRequest, "INVALID_COMMAND", "command must be NEXT, PREV or BLACKOUT"}
	case errors.Is(err, audience.ErrInvalidTransition):
		return APIError{http.StatusBadRequest, "INVALID_INPUT", "status can only move forward"}
	case errors.Is(err, errBadBody),
		errors.Is(err, workspace.ErrInvalidInput),
		errors.Is(err, livestate.ErrInvalidInput),
		errors.Is(err, audience.ErrInvalidInput),
		errors.Is(err, audit.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidInput):
		return APIError{http.StatusBadRequest, "INVALID_INPUT", err.Error()}
	case errors.Is(err, workspace.ErrWorkspaceNotFound),
		errors.Is(err, workspace.ErrSnapshotNotFound),
		errors.Is(err, audience.ErrMessageNotFound),
		errors.Is(err, audience.ErrWorkspaceNotFound),
		errors.Is(err, repository.ErrNotFound):
		return APIError{http.StatusNotFound, "NOT_FOUND", err.Error()}
	default:
		return APIError{http.StatusInternalServerError, op + "_FAILED", ""}
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	apiErr := MapError(err, op)
	if apiErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"op", op,
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		s.logger.Debug("request rejected", "op", op, "code", apiErr.Code, "error", err)
	}
	WriteError(w, apiErr.Status, apiErr.Code, apiErr.Message)
}
