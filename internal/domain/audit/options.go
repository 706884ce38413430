package audit

import "time"

// ListOptions provides filtering options for listing audit entries.
type ListOptions struct {
	SessionID *string
	Action    *Action
	Since     *time.Time
	Limit     int
	Offset    int
}
