// Package record parses metric snapshot lines and flattens their nested
// metrics objects into path/value pairs.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrParse is the sentinel every *ParseError unwraps to.
var ErrParse = errors.New("parse error")

// LeafError describes one metric leaf that was dropped from an otherwise
// valid record.
type LeafError struct {
	Path   MetricPath
	Reason string
}

func (e LeafError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ParseError reports a rejected line, or the rejected leaves of an accepted one.
// Line is the 1-based input line number when known.
type ParseError struct {
	Line   int
	Reason string
	Leaves []LeafError
}

func (e *ParseError) Error() string {
	prefix := "parse error"
	if e.Line > 0 {
		prefix = fmt.Sprintf("parse error at line %d", e.Line)
	}
	if len(e.Leaves) == 0 {
		return prefix + ": " + e.Reason
	}
	parts := make([]string, 0, len(e.Leaves))
	for _, l := range e.Leaves {
		parts = append(parts, l.Error())
	}
	if e.Reason == "" {
		return prefix + ": rejected leaves: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Reason, strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Metric is one flattened leaf.
type Metric struct {
	Path  MetricPath
	Value MetricValue
}

// Sample is one parsed record. Metrics holds one entry per distinct path in
// flattening order; Rejected lists leaves that were not finite numbers.
type Sample struct {
	Target    string
	Timestamp float64
	Metrics   []Metric
	Rejected  []LeafError
}

// LeafError returns a *ParseError for the rejected leaves, or nil.
func (s *Sample) LeafError() error {
	if len(s.Rejected) == 0 {
		return nil
	}
	return &ParseError{Leaves: append([]LeafError(nil), s.Rejected...)}
}

// Record is the wire form of one snapshot, one JSON object per line.
type Record struct {
	Target    string          `json:"target"`
	Timestamp float64         `json:"timestamp"`
	Metrics   json.RawMessage `json:"metrics"`
}

type wireRecord struct {
	Target    *string         `json:"target"`
	Timestamp *float64        `json:"timestamp"`
	Metrics   json.RawMessage `json:"metrics"`
}

// Parse turns one input line into a Sample. It never ingests anything.
func Parse(line []byte) (*Sample, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, &ParseError{Reason: "empty line"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var w wireRecord
	if err := dec.Decode(&w); err != nil {
		return nil, &ParseError{Reason: "malformed JSON: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Reason: "trailing data after record"}
	}
	if w.Target == nil {
		return nil, &ParseError{Reason: `missing field "target"`}
	}
	if w.Timestamp == nil {
		return nil, &ParseError{Reason: `missing field "timestamp"`}
	}
	if len(w.Metrics) == 0 {
		return nil, &ParseError{Reason: `missing field "metrics"`}
	}

	mdec := json.NewDecoder(bytes.NewReader(w.Metrics))
	mdec.UseNumber()
	var metrics any
	if err := mdec.Decode(&metrics); err != nil {
		return nil, &ParseError{Reason: "malformed metrics: " + err.Error()}
	}
	obj, ok := metrics.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: `field "metrics" is not an object`}
	}

	items, rejected := Flatten(obj)
	return &Sample{
		Target:    *w.Target,
		Timestamp: *w.Timestamp,
		Metrics:   items,
		Rejected:  rejected,
	}, nil
}
