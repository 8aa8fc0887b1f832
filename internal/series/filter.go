package series

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sile/magpies/internal/record"
)

// ErrInvalidFilterPattern is returned when a regex filter does not compile.
var ErrInvalidFilterPattern = errors.New("invalid filter pattern")

// regexPrefix forces regex matching regardless of the configured mode.
const regexPrefix = "re:"

type FilterMode int

const (
	FilterSubstring FilterMode = iota
	FilterRegex
)

func (m FilterMode) String() string {
	if m == FilterRegex {
		return "regex"
	}
	return "substring"
}

// ParseFilterMode accepts "substring" (or "") and "regex".
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "substring", "sub":
		return FilterSubstring, nil
	case "regex", "regexp", "re":
		return FilterRegex, nil
	default:
		return FilterSubstring, fmt.Errorf("unknown filter mode %q (want substring or regex)", s)
	}
}

// Filter selects metric paths by their dotted display form. The zero value
// and a nil *Filter match everything.
type Filter struct {
	pattern string
	mode    FilterMode
	needle  string
	re      *regexp.Regexp
}

// NewFilter compiles pattern. Substring filters are case-insensitive; a
// pattern starting with "re:" is always treated as a regular expression.
func NewFilter(pattern string, mode FilterMode) (*Filter, error) {
	f := &Filter{pattern: pattern, mode: mode}
	expr := pattern
	if strings.HasPrefix(pattern, regexPrefix) {
		f.mode = FilterRegex
		expr = strings.TrimPrefix(pattern, regexPrefix)
	}
	if f.mode == FilterRegex {
		if expr == "" {
			return f, nil
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidFilterPattern, pattern, err)
		}
		f.re = re
		return f, nil
	}
	f.needle = strings.ToLower(strings.TrimSpace(pattern))
	return f, nil
}

// MatchAll returns a filter that accepts every path.
func MatchAll() *Filter { return &Filter{} }

func (f *Filter) Pattern() string {
	if f == nil {
		return ""
	}
	return f.pattern
}

func (f *Filter) Mode() FilterMode {
	if f == nil {
		return FilterSubstring
	}
	return f.mode
}

// Match reports whether the dotted path s passes the filter.
func (f *Filter) Match(s string) bool {
	if f == nil {
		return true
	}
	if f.re != nil {
		return f.re.MatchString(s)
	}
	if f.needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), f.needle)
}

func (f *Filter) MatchPath(p record.MetricPath) bool {
	return f.Match(p.String())
}

func (f *Filter) String() string {
	if f == nil || f.pattern == "" {
		return "*"
	}
	return f.pattern
}
