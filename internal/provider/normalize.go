package provider

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeInterval maps user-facing interval strings onto the Upstox
// candle interval vocabulary:
//
//	""          -> "1minute"
//	"Nm"        -> "Nminute"
//	"Nh"        -> "Nhour"
//	"1d"        -> "day"
//	"Nd" (N!=1) -> "Nday"
//	"day", "week", "month" pass through
//	"unit/N"    -> normalized as "N" + unit-initial
func NormalizeInterval(interval string) string {
	s := strings.ToLower(strings.TrimSpace(interval))
	if s == "" {
		return "1minute"
	}

	switch s {
	case "day", "week", "month":
		return s
	}

	// Compound form, e.g. "minutes/5" -> "5m"
	if unit, n, found := strings.Cut(s, "/"); found {
		unit = strings.TrimSpace(unit)
		n = strings.TrimSpace(n)
		if unit != "" && n != "" {
			s = n + unit[:1]
		}
	}

	if len(s) < 2 {
		return s
	}

	n := s[:len(s)-1]
	if _, err := strconv.Atoi(n); err != nil {
		return s
	}

	switch s[len(s)-1] {
	case 'm':
		return n + "minute"
	case 'h':
		return n + "hour"
	case 'd':
		if n == "1" {
			return "day"
		}
		return n + "day"
	}
	return s
}

// ParseTimestamp normalizes a broker timestamp value. Integers above 1e12
// are treated as milliseconds, smaller integers as seconds; strings are
// parsed as ISO-8601 with a fallback to now.
func ParseTimestamp(value interface{}) time.Time {
	switch v := value.(type) {
	case float64:
		return epochToTime(int64(v))
	case int64:
		return epochToTime(v)
	case int:
		return epochToTime(int64(v))
	case string:
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

func epochToTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

// numberField extracts the first present numeric field from a decoded JSON
// object, in priority order.
func numberField(row map[string]interface{}, names ...string) (float64, bool) {
	for _, name := range names {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// stringField extracts the first present non-empty string field from a
// decoded JSON object, in priority order.
func stringField(row map[string]interface{}, names ...string) string {
	for _, name := range names {
		if v, ok := row[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
