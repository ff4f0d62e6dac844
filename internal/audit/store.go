package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultListLimit = 50

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record appends an event. Agent output is arbitrary bytes, so the response
// is reduced to valid UTF-8 without NUL before it reaches a TEXT column.
func (s *Store) Record(ctx context.Context, event Event) (*Event, error) {
	refs := make([]fileRef, 0, len(event.Files))
	for _, name := range event.Files {
		refs = append(refs, fileRef{Name: name})
	}
	files, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file list: %w", err)
	}

	event.Response = Sanitize(event.Response)
	event.Command = Sanitize(event.Command)

	err = s.pool.QueryRow(ctx, `
INSERT INTO dispatch_events (client_id, client_ip, command, response, files)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`,
		event.ClientID, event.ClientIP, event.Command, event.Response, files,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record dispatch event: %w", err)
	}

	return &event, nil
}

// List returns the newest events first. An empty clientID lists all clients.
func (s *Store) List(ctx context.Context, clientID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, created_at, client_id, client_ip, command, response, files
FROM dispatch_events
WHERE $1 = '' OR client_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		var files []byte
		if err := row.Scan(&e.ID, &e.CreatedAt, &e.ClientID, &e.ClientIP, &e.Command, &e.Response, &files); err != nil {
			return Event{}, err
		}
		var refs []fileRef
		if err := json.Unmarshal(files, &refs); err != nil {
			return Event{}, fmt.Errorf("failed to decode file list: %w", err)
		}
		e.Files = make([]string, 0, len(refs))
		for _, r := range refs {
			e.Files = append(e.Files, r.Name)
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch events: %w", err)
	}
	return events, nil
}

func Sanitize(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "�"), "\x00", "")
}
