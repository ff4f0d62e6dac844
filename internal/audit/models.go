package audit

import "time"

// Event is one dispatched command and what the agent sent back.
type Event struct {
	ID        int64
	CreatedAt time.Time
	ClientID  string
	ClientIP  string
	Command   string
	Response  string
	Files     []string
}

type fileRef struct {
	Name string `json:"name"`
}
