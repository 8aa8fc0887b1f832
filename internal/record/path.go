package record

import "strings"

// segmentSep never appears in the display form, so segments containing '.'
// stay distinguishable from nested keys. Segments are escaped so that they
// never contain segmentSep themselves.
const (
	segmentSep = "\x1f"
	escapeByte = "\x1e"
)

var (
	segmentEscaper   = strings.NewReplacer(escapeByte, escapeByte+"0", segmentSep, escapeByte+"1")
	segmentUnescaper = strings.NewReplacer(escapeByte+"0", escapeByte, escapeByte+"1", segmentSep)
)

func escapeSegment(seg string) string {
	if !strings.ContainsAny(seg, segmentSep+escapeByte) {
		return seg
	}
	return segmentEscaper.Replace(seg)
}

func unescapeSegment(seg string) string {
	if !strings.Contains(seg, escapeByte) {
		return seg
	}
	return segmentUnescaper.Replace(seg)
}

// MetricPath identifies one leaf of a flattened metrics object. It is
// comparable and safe to use as a map key.
type MetricPath struct {
	key string
}

// NewPath builds a path from its segments.
func NewPath(segments ...string) MetricPath {
	if len(segments) == 0 {
		return MetricPath{}
	}
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(segmentSep)
		b.WriteString(escapeSegment(seg))
	}
	return MetricPath{key: b.String()}
}

// Child returns a new path with seg appended.
func (p MetricPath) Child(seg string) MetricPath {
	return MetricPath{key: p.key + segmentSep + escapeSegment(seg)}
}

// Segments returns a copy of the path segments.
func (p MetricPath) Segments() []string {
	if p.key == "" {
		return nil
	}
	segs := strings.Split(p.key[len(segmentSep):], segmentSep)
	for i, seg := range segs {
		segs[i] = unescapeSegment(seg)
	}
	return segs
}

// Len is the number of segments.
func (p MetricPath) Len() int {
	if p.key == "" {
		return 0
	}
	return strings.Count(p.key, segmentSep)
}

// IsZero reports whether p is the empty path.
func (p MetricPath) IsZero() bool { return p.key == "" }

// String joins the segments with '.', the form used for display and filtering.
func (p MetricPath) String() string {
	if p.key == "" {
		return ""
	}
	if !strings.Contains(p.key, escapeByte) {
		return strings.ReplaceAll(p.key[len(segmentSep):], segmentSep, ".")
	}
	return strings.Join(p.Segments(), ".")
}
