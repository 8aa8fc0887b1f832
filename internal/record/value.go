package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind classifies a metric leaf.
type Kind uint8

const (
	KindNumeric Kind = iota + 1
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// MetricValue is either a finite number or any other JSON value. Other
// values are kept in canonical JSON form (sorted object keys, normalised
// numbers) so that structural equality is string equality.
type MetricValue struct {
	kind  Kind
	num   float64
	raw   string
	items []string
}

// Numeric wraps a finite number.
func Numeric(v float64) MetricValue {
	return MetricValue{kind: KindNumeric, num: v}
}

// Other wraps a decoded JSON value. Arrays contribute their elements to
// unions, every other value contributes itself.
func Other(v any) (MetricValue, error) {
	c := canonical(v)
	raw, err := marshalCanonical(c)
	if err != nil {
		return MetricValue{}, err
	}
	mv := MetricValue{kind: KindOther, raw: raw}
	if arr, ok := c.([]any); ok {
		mv.items = make([]string, 0, len(arr))
		for _, e := range arr {
			s, err := marshalCanonical(e)
			if err != nil {
				return MetricValue{}, err
			}
			mv.items = append(mv.items, s)
		}
		return mv, nil
	}
	mv.items = []string{raw}
	return mv, nil
}

// Kind returns the value classification.
func (v MetricValue) Kind() Kind { return v.kind }

// IsZero reports whether v was never assigned.
func (v MetricValue) IsZero() bool { return v.kind == 0 }

// Float returns the number for numeric values.
func (v MetricValue) Float() (float64, bool) {
	if v.kind != KindNumeric {
		return 0, false
	}
	return v.num, true
}

// Raw returns the canonical JSON text of the value.
func (v MetricValue) Raw() string {
	if v.kind == KindNumeric {
		return formatNumber(v.num)
	}
	return v.raw
}

// Items returns the union members contributed by v. The slice must not be
// modified.
func (v MetricValue) Items() []string {
	if v.kind == KindNumeric {
		return []string{formatNumber(v.num)}
	}
	return v.items
}

// AsOther reclassifies a numeric value as an Other value. Other values are
// returned unchanged.
func (v MetricValue) AsOther() MetricValue {
	if v.kind != KindNumeric {
		return v
	}
	s := formatNumber(v.num)
	return MetricValue{kind: KindOther, raw: s, items: []string{s}}
}

// Interface returns the decoded JSON form of v.
func (v MetricValue) Interface() any {
	switch v.kind {
	case KindNumeric:
		return v.num
	case KindOther:
		dec := json.NewDecoder(bytes.NewReader([]byte(v.raw)))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err != nil {
			return v.raw
		}
		return canonical(out)
	default:
		return nil
	}
}

// Equal reports structural equality.
func (v MetricValue) Equal(o MetricValue) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindNumeric {
		return v.num == o.num
	}
	return v.raw == o.raw
}

func (v MetricValue) String() string {
	return v.Raw()
}

func formatNumber(f float64) string {
	s, err := marshalCanonical(f)
	if err != nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}

// canonical converts json.Number leaves into float64 where they are finite so
// that 1 and 1.0 compare equal.
func canonical(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return x
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = canonical(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = canonical(e)
		}
		return out
	default:
		return v
	}
}

func marshalCanonical(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
