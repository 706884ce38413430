package audience

import "time"

// Status is the moderation state of an audience message
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusProjected Status = "projected"
	StatusDismissed Status = "dismissed"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusApproved:  1,
	StatusProjected: 2,
	StatusDismissed: 3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Message is a question or note submitted from the audience view
type Message struct {
	ID            string    `json:"id"`
	WorkspaceID   string    `json:"workspaceId"`
	Category      string    `json:"category"`
	Text          string    `json:"text"`
	SubmitterName *string   `json:"submitterName,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ListOptions filters a message listing
type ListOptions struct {
	Status *Status
	Limit  int
}
