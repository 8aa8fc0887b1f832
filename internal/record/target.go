package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Target describes one command to poll.
type Target struct {
	Name        string   `json:"target"`
	CommandPath string   `json:"command_path"`
	CommandArgs []string `json:"command_args,omitempty"`
}

// Validate checks the required fields.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target name is required")
	}
	if strings.TrimSpace(t.CommandPath) == "" {
		return fmt.Errorf("target %q: command_path is required", t.Name)
	}
	return nil
}

// ParseTarget decodes one target descriptor line.
func ParseTarget(line []byte) (Target, error) {
	var t Target
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(line)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return Target{}, fmt.Errorf("invalid target descriptor: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}
