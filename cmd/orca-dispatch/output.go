package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/EternisAI/orca/internal/dispatch"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type dispatchOutput struct {
	ClientID   string     `json:"client_id" yaml:"client_id"`
	ClientIP   string     `json:"client_ip" yaml:"client_ip"`
	Command    string     `json:"command" yaml:"command"`
	Response   string     `json:"response" yaml:"response"`
	Files      []string   `json:"files,omitempty" yaml:"files,omitempty"`
	Truncated  bool       `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	EventID    *int64     `json:"event_id,omitempty" yaml:"event_id,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty" yaml:"recorded_at,omitempty"`
}

func newDispatchOutput(result *dispatch.Result) dispatchOutput {
	out := dispatchOutput{
		ClientID:  result.Identity.ID,
		ClientIP:  result.Identity.IP,
		Command:   result.Command,
		Response:  string(result.Response),
		Files:     result.Files,
		Truncated: result.Truncated,
	}
	if result.Event != nil {
		id, at := result.Event.ID, result.Event.CreatedAt
		out.EventID = &id
		out.RecordedAt = &at
	}
	return out
}

// render writes the result in the requested format. The text format is the
// raw agent output, unchanged.
func render(w io.Writer, format string, result *dispatch.Result) error {
	switch format {
	case "", formatText:
		_, err := w.Write(result.Response)
		return err
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newDispatchOutput(result))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newDispatchOutput(result)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", format)
	}
}

func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatYAML:
		return true
	}
	return false
}
