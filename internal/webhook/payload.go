package webhook

import (
	"strconv"
	"strings"
	"time"
)

// Payload is one parsed provider body. Accessors walk nested keys and
// return zero values on any missing or mistyped step.
type Payload map[string]interface{}

func (p Payload) get(path ...string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(p)
	for _, key := range path {
		// "0" steps into the first element of an array (Lastlink's
		// Products list).
		if arr, isArr := cur.([]interface{}); isArr && key == "0" {
			if len(arr) == 0 {
				return nil, false
			}
			cur = arr[0]
			continue
		}
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// str returns the trimmed string at path, or "".
func (p Payload) str(path ...string) string {
	v, ok := p.get(path...)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// num returns the number at path. JSON numbers decode as float64; numeric
// strings are tolerated because providers disagree on this too.
func (p Payload) num(path ...string) (float64, bool) {
	v, ok := p.get(path...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		return parseDecimal(strings.TrimSpace(n))
	default:
		return 0, false
	}
}

// has reports whether any value (including null-ish empties) sits at path.
func (p Payload) has(path ...string) bool {
	v, ok := p.get(path...)
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return v != nil
}

func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	// Providers mix "1234.56" and "1234,56".
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime tries the timestamp formats seen across providers.
func parseTime(s string) *time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
