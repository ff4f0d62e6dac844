package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Outcome is the discriminator of a registration result.
type Outcome string

const (
	OutcomeRegistered Outcome = "registered"
	OutcomeUpdated    Outcome = "updated"
	OutcomeUUIDInUse  Outcome = "uuid_in_use"
	OutcomeError      Outcome = "error"
)

// Legacy text responses still understood by ParseResult.
const (
	legacyRegisteredPrefix = "registered:"
	legacyUpdatedPrefix    = "updated:"
	legacyUUIDInUse        = "UUID_IN_USE"

	verboseRegisteredPrefix = "Client registered successfully. UUID: "
	verboseUpdatedPrefix    = "Client updated successfully. UUID: "
)

var ErrMalformedResult = errors.New("malformed registration result")

// Result is the single response the registry writes for each registration exchange.
type Result struct {
	Outcome Outcome `json:"outcome"`
	UUID    string  `json:"uuid,omitempty"`
	Error   string  `json:"error,omitempty"`
}

func Registered(id string) Result { return Result{Outcome: OutcomeRegistered, UUID: id} }
func Updated(id string) Result    { return Result{Outcome: OutcomeUpdated, UUID: id} }
func UUIDInUse() Result           { return Result{Outcome: OutcomeUUIDInUse} }

func Failure(format string, args ...any) Result {
	return Result{Outcome: OutcomeError, Error: fmt.Sprintf(format, args...)}
}

// Accepted reports whether the registry confirmed an id for the caller.
func (r Result) Accepted() bool {
	return (r.Outcome == OutcomeRegistered || r.Outcome == OutcomeUpdated) && r.UUID != ""
}

// String renders the result in the legacy text form, used for logging.
func (r Result) String() string {
	switch r.Outcome {
	case OutcomeRegistered:
		return legacyRegisteredPrefix + r.UUID
	case OutcomeUpdated:
		return legacyUpdatedPrefix + r.UUID
	case OutcomeUUIDInUse:
		return legacyUUIDInUse
	default:
		return r.Error
	}
}

// ParseResult decodes a registry response. Tagged JSON is preferred; the
// legacy "registered:<id>" / "updated:<id>" / "UUID_IN_USE" strings are accepted
// so agents keep working against older registries.
func ParseResult(data []byte) (Result, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Result{}, fmt.Errorf("%w: empty response", ErrMalformedResult)
	}

	if strings.HasPrefix(text, "{") {
		var r Result
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
		}
		switch r.Outcome {
		case OutcomeRegistered, OutcomeUpdated:
			if r.UUID == "" {
				return Result{}, fmt.Errorf("%w: %s without uuid", ErrMalformedResult, r.Outcome)
			}
		case OutcomeUUIDInUse, OutcomeError:
		default:
			return Result{}, fmt.Errorf("%w: unknown outcome %q", ErrMalformedResult, r.Outcome)
		}
		return r, nil
	}

	if text == legacyUUIDInUse {
		return UUIDInUse(), nil
	}
	for _, p := range []string{legacyRegisteredPrefix, verboseRegisteredPrefix} {
		if id, ok := trimID(text, p); ok {
			return Registered(id), nil
		}
	}
	for _, p := range []string{legacyUpdatedPrefix, verboseUpdatedPrefix} {
		if id, ok := trimID(text, p); ok {
			return Updated(id), nil
		}
	}

	return Result{Outcome: OutcomeError, Error: text}, nil
}

func trimID(text, prefix string) (string, bool) {
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	return id, id != ""
}
