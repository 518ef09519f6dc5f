package metrics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"nmsview/internal/domain"
)

// Float reads key from counters as a float. Missing or unparseable values
// yield 0.
func Float(c domain.Counters, key string) float64 {
	v, ok := c.Get(key)
	if !ok {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return f
}

// Int reads key from counters as an integer count, truncating any fraction.
// Missing, unparseable or out of int64 range values yield 0.
func Int(c domain.Counters, key string) int64 {
	f := math.Trunc(Float(c, key))
	// 2^63 is the first float64 past MaxInt64
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		return parseNumeric(x.String())
	case string:
		return parseNumeric(x)
	case bool:
		return 0, false
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseNumeric parses s, falling back to its longest leading numeric prefix
// so values like "12.5%" or "3 ms" still chart.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	prefix := numericPrefix(s)
	if prefix == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits = true
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			digits = true
		}
		i = j
	}
	if !digits {
		return ""
	}
	// exponent only counts when followed by digits
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	return strings.TrimSuffix(s[:i], ".")
}
