package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrAmbiguousIdentifier also matches ErrIdentityNotFound under errors.Is.
	ErrAmbiguousIdentifier = fmt.Errorf("%w: identifier matches more than one identity", ErrIdentityNotFound)
	ErrInvalidIdentity     = errors.New("invalid identity")
)

// The WHERE on the conflict branch is the admission check: the row is only
// touched when the stored and presented MAC addresses are equal (NULL equals
// NULL). When it does not match no row is returned, which callers read as a
// conflict. Doing this in one statement closes the check-then-insert race.
const upsertIdentitySQL = `
INSERT INTO identities (id, ip, hostname, mac_address)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
ON CONFLICT (id) DO UPDATE
    SET ip = EXCLUDED.ip,
        hostname = COALESCE(EXCLUDED.hostname, identities.hostname),
        updated_at = now()
    WHERE identities.mac_address IS NOT DISTINCT FROM EXCLUDED.mac_address
RETURNING (xmax = 0) AS inserted`

const selectIdentityColumns = `id, ip, COALESCE(hostname, ''), COALESCE(mac_address, ''), created_at, updated_at`

const lookupIdentitySQL = `
SELECT ` + selectIdentityColumns + `
FROM identities
WHERE id = $1 OR ip = $1 OR hostname = $1 OR lower(mac_address) = lower($1)
ORDER BY (id = $1) DESC, updated_at DESC
LIMIT 2`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert inserts a new identity or, when the id exists with the same MAC
// address, refreshes its ip and hostname.
func (s *Store) Upsert(ctx context.Context, ident Identity) (UpsertOutcome, error) {
	if ident.ID == "" || ident.IP == "" {
		return 0, fmt.Errorf("%w: id and ip are required", ErrInvalidIdentity)
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, upsertIdentitySQL, ident.ID, ident.IP, ident.Hostname, ident.MACAddress).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Identity upsert rejected by MAC check", "id", ident.ID)
			return OutcomeConflict, nil
		}
		return 0, fmt.Errorf("failed to upsert identity: %w", err)
	}

	if inserted {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectIdentityColumns+` FROM identities WHERE id = $1`, id)
	ident, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return ident, nil
}

// Lookup resolves an id, ip, hostname or MAC address to a single identity.
// An exact id match always wins; otherwise more than one match is ambiguous.
func (s *Store) Lookup(ctx context.Context, identifier string) (*Identity, error) {
	if identifier == "" {
		return nil, ErrIdentityNotFound
	}

	rows, err := s.pool.Query(ctx, lookupIdentitySQL, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Identity, error) {
		return scanIdentity(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, ErrIdentityNotFound
	case matches[0].ID == identifier || len(matches) == 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguousIdentifier
	}
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectIdentityColumns+` FROM identities ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Identity, error) {
		ident, err := scanIdentity(row)
		if err != nil {
			return Identity{}, err
		}
		return *ident, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return result, nil
}

func scanIdentity(row pgx.Row) (*Identity, error) {
	var ident Identity
	if err := row.Scan(&ident.ID, &ident.IP, &ident.Hostname, &ident.MACAddress, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
		return nil, err
	}
	return &ident, nil
}
