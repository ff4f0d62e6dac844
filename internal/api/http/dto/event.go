package dto

import "time"

type EventResponse struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ClientID  string    `json:"client_id"`
	ClientIP  string    `json:"client_ip"`
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	Files     []string  `json:"files"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
	Count  int             `json:"count"`
}
