package userdb

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultWeight is assumed when a line carries no usable c= token.
const DefaultWeight = 1.0

const weightToken = "c="

// looseFloat matches the longest numeric prefix, the way strtod would.
var looseFloat = regexp.MustCompile(`^[+-]?(?:(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?|(?i:inf(?:inity)?))`)

// ParseWeight returns the value of the rightmost c= token of line.
//
// 格式示例: biàn biàn	便便	c=1 d=0.00687406 t=31469
//
// A missing or malformed token yields DefaultWeight so that bad data is kept.
func ParseWeight(line string) float64 {
	pos := strings.LastIndex(line, weightToken)
	if pos < 0 {
		return DefaultWeight
	}
	raw := line[pos+len(weightToken):]
	if end := strings.IndexFunc(raw, isSpace); end >= 0 {
		raw = raw[:end]
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(v) {
			return DefaultWeight
		}
		return v
	}
	if v, ok := parseLoose(raw); ok {
		return v
	}
	return DefaultWeight
}

func parseLoose(raw string) (float64, bool) {
	prefix := looseFloat.FindString(raw)
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Valid reports whether an entry with weight w survives compaction.
func Valid(w float64) bool {
	return w > 0.0
}

// DisplayText extracts the field between the first and second tab.
// With a single tab it returns everything after it; without tabs the whole line.
func DisplayText(line string) string {
	line = strings.TrimRight(line, "\r\n")
	first := strings.IndexByte(line, '\t')
	if first < 0 {
		return line
	}
	rest := line[first+1:]
	second := strings.IndexByte(rest, '\t')
	if second < 0 {
		return rest
	}
	return rest[:second]
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
