package protocol

import "strings"

const (
	// PlaceholderUnregistered is sent by agents that have never been assigned an id.
	PlaceholderUnregistered = "UNREGISTERED"
	// PlaceholderUnknown is the legacy placeholder some older agents send.
	PlaceholderUnknown = "UNKNOWN_UUID"
)

// Identity is the self-reported payload an agent sends to the registry.
type Identity struct {
	UUID       string  `json:"uuid"`
	Hostname   *string `json:"hostname,omitempty"`
	IP         string  `json:"ip"`
	MACAddress *string `json:"mac_address,omitempty"`
}

// HasDurableID reports whether the identity carries an id the registry should keep.
func (i Identity) HasDurableID() bool {
	return !IsPlaceholderID(i.UUID)
}

func IsPlaceholderID(id string) bool {
	switch strings.TrimSpace(id) {
	case "", PlaceholderUnregistered, PlaceholderUnknown:
		return true
	}
	return false
}

// StringPtr returns nil for empty strings so optional fields are omitted on the wire.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
