package registry

import (
	"context"
	"log/slog"
	"strings"

	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/protocol"
	"github.com/google/uuid"
)

// Store is the persistence the registry needs; identity.Store implements it.
type Store interface {
	Upsert(ctx context.Context, ident identity.Identity) (identity.UpsertOutcome, error)
}

type Service struct {
	store Store
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		newID: func() string { return uuid.New().String() },
	}
}

// Register resolves one presented identity to a registration result. It
// never returns an error: failures are reported inside the result so the
// caller can always answer the agent.
func (s *Service) Register(ctx context.Context, presented protocol.Identity) protocol.Result {
	ident := identity.FromWire(presented)
	ident.ID = strings.TrimSpace(ident.ID)
	ident.IP = strings.TrimSpace(ident.IP)

	if ident.IP == "" {
		return protocol.Failure("invalid identity: ip is required")
	}

	if protocol.IsPlaceholderID(ident.ID) {
		ident.ID = s.newID()
		slog.Debug("Assigning new identity", "id", ident.ID, "ip", ident.IP)
	}

	outcome, err := s.store.Upsert(ctx, ident)
	if err != nil {
		slog.Error("Failed to persist identity", "id", ident.ID, "error", err)
		return protocol.Failure("failed to persist identity: %v", err)
	}

	switch outcome {
	case identity.OutcomeInserted:
		slog.Info("Identity registered", "id", ident.ID, "ip", ident.IP, "hostname", ident.Hostname)
		return protocol.Registered(ident.ID)
	case identity.OutcomeUpdated:
		slog.Info("Identity checked in", "id", ident.ID, "ip", ident.IP, "hostname", ident.Hostname)
		return protocol.Updated(ident.ID)
	case identity.OutcomeConflict:
		slog.Warn("Identity claimed by another machine", "id", ident.ID, "mac_address", ident.MACAddress)
		return protocol.UUIDInUse()
	default:
		return protocol.Failure("unexpected store outcome: %s", outcome)
	}
}
