package audience

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTextLength     = 1000
	maxNameLength     = 80
	maxCategoryLength = 40
	defaultCategory   = "general"
)

// ValidateSubmission validates and normalizes an anonymous submission.
func ValidateSubmission(req SubmitRequest) (SubmitRequest, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" || utf8.RuneCountInString(req.Text) > maxTextLength {
		return req, ErrInvalidInput
	}

	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Category == "" {
		req.Category = defaultCategory
	}
	if utf8.RuneCountInString(req.Category) > maxCategoryLength {
		return req, ErrInvalidInput
	}

	if req.SubmitterName != nil {
		name := strings.TrimSpace(*req.SubmitterName)
		switch {
		case name == "":
			req.SubmitterName = nil
		case utf8.RuneCountInString(name) > maxNameLength:
			return req, ErrInvalidInput
		default:
			req.SubmitterName = &name
		}
	}
	return req, nil
}

// ValidateTransition validates a moderation status change. Status only
// moves forward; skipping states is allowed.
func ValidateTransition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidInput
	}
	if statusRank[to] <= statusRank[from] {
		return ErrInvalidTransition
	}
	return nil
}
