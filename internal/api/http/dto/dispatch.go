package dto

type DispatchRequest struct {
	Command string `json:"command" binding:"required"`
	Client  string `json:"client" binding:"required"`
	// Files is a comma-separated list of paths on the API host.
	Files       string       `json:"files,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file uploaded with the request; Content is base64.
type Attachment struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content"`
}

type DispatchResponse struct {
	Stdout    string   `json:"stdout"`
	Stderr    string   `json:"stderr"`
	Success   bool     `json:"success"`
	ClientID  string   `json:"client_id,omitempty"`
	ClientIP  string   `json:"client_ip,omitempty"`
	Files     []string `json:"files,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	EventID   *int64   `json:"event_id,omitempty"`
}
