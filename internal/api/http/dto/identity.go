package dto

import "time"

type IdentityResponse struct {
	ID         string    `json:"id"`
	IP         string    `json:"ip"`
	Hostname   string    `json:"hostname,omitempty"`
	MACAddress string    `json:"mac_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListIdentitiesResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Count      int                `json:"count"`
}
