package record

import (
	"encoding/json"
	"math"
	"sort"
)

// Flatten walks a decoded JSON value and yields its leaves. Objects are
// descended key by key in sorted order; arrays, scalars and empty objects are
// leaves. Numbers that are not finite are reported instead of yielded.
func Flatten(v any) ([]Metric, []LeafError) {
	var (
		out []Metric
		bad []LeafError
	)
	if obj, ok := v.(map[string]any); ok && len(obj) == 0 {
		return nil, nil
	}
	flattenInto(v, MetricPath{}, &out, &bad)
	return out, bad
}

func flattenInto(v any, prefix MetricPath, out *[]Metric, bad *[]LeafError) {
	if obj, ok := v.(map[string]any); ok && len(obj) > 0 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenInto(obj[k], prefix.Child(k), out, bad)
		}
		return
	}

	mv, reason := leafValue(v)
	if reason != "" {
		*bad = append(*bad, LeafError{Path: prefix, Reason: reason})
		return
	}
	*out = append(*out, Metric{Path: prefix, Value: mv})
}

func leafValue(v any) (MetricValue, string) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return MetricValue{}, "number " + x.String() + " is not finite"
		}
		return Numeric(f), ""
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return MetricValue{}, "number is not finite"
		}
		return Numeric(x), ""
	default:
		mv, err := Other(x)
		if err != nil {
			return MetricValue{}, err.Error()
		}
		return mv, ""
	}
}

// Unflatten re-nests leaves by path segments. It is the inverse of Flatten
// for the leaves Flatten accepted.
func Unflatten(metrics []Metric) map[string]any {
	root := map[string]any{}
	for _, m := range metrics {
		segs := m.Path.Segments()
		if len(segs) == 0 {
			continue
		}
		node := root
		for _, seg := range segs[:len(segs)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			node = child
		}
		node[segs[len(segs)-1]] = m.Value.Interface()
	}
	return root
}
