package identity

import (
	"time"

	"github.com/EternisAI/orca/internal/protocol"
)

// Identity is one managed machine as stored by the registry. Empty Hostname
// and MACAddress mean the agent did not report them.
type Identity struct {
	ID         string
	IP         string
	Hostname   string
	MACAddress string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UpsertOutcome is what a registration did to the store.
type UpsertOutcome int

const (
	OutcomeInserted UpsertOutcome = iota + 1
	OutcomeUpdated
	// OutcomeConflict means the id exists with a different MAC address; nothing was written.
	OutcomeConflict
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

func FromWire(w protocol.Identity) Identity {
	return Identity{
		ID:         w.UUID,
		IP:         w.IP,
		Hostname:   protocol.StringValue(w.Hostname),
		MACAddress: protocol.StringValue(w.MACAddress),
	}
}

func (i Identity) ToWire() protocol.Identity {
	return protocol.Identity{
		UUID:       i.ID,
		IP:         i.IP,
		Hostname:   protocol.StringPtr(i.Hostname),
		MACAddress: protocol.StringPtr(i.MACAddress),
	}
}

// Address returns the host a dispatcher should dial for this identity.
func (i Identity) Address() string {
	return i.IP
}

// ServerName returns the name the machine's agent certificate is expected to carry.
func (i Identity) ServerName() string {
	if i.Hostname != "" {
		return i.Hostname
	}
	return i.IP
}
