package view

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Placeholder is shown for absent values.
const Placeholder = "-"

// FormatFloat renders n with thousands separators in both the integer and
// the fraction digits, e.g. 1234567.891234 -> "1,234,567.891,234".
func FormatFloat(n float64, decimals int) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatFloat(n, 'f', max(decimals, 0), 64)
	intPart, frac, hasFrac := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	whole, err := strconv.ParseFloat(intPart, 64)
	if err != nil {
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(humanize.Commaf(whole))
	if hasFrac {
		b.WriteByte('.')
		for i, c := range frac {
			if i > 0 && i%3 == 0 {
				b.WriteByte(',')
			}
			b.WriteRune(c)
		}
	}
	return b.String()
}

// FormatValue picks no decimals for whole numbers and decimals otherwise.
func FormatValue(n float64, decimals int) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return FormatFloat(n, 0)
	}
	return FormatFloat(n, decimals)
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatTimestamp renders seconds since the epoch in local time.
func FormatTimestamp(ts float64) string {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).Local().Format("2006-01-02 15:04:05")
}

// FormatUnion joins union members, truncating after limit items when limit
// is positive.
func FormatUnion(items []string, limit int) string {
	if limit <= 0 || len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + ", +" + strconv.Itoa(len(items)-limit) + " more"
}
