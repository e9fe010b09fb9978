// Package config loads broker configuration and provides typed accessors
// for loosely typed value maps such as dialog answers and seed data.
package config

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Values is a loosely typed key-value map. Dialog answers arrive as
// strings, seed data as YAML/JSON scalars; the getters accept both.
type Values = map[string]any

// FromStrings converts dialog answers into Values.
func FromStrings(m map[string]string) Values {
	out := make(Values, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetString extracts a string, returning (value, found).
func GetString(values Values, key string) (string, bool) {
	v, ok := values[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an int, handling int, int64, integral float64 and numeric strings.
func GetInt(values Values, key string) (int, bool) {
	v, ok := values[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

// GetTime extracts a timestamp given as RFC 3339 text or as Unix
// milliseconds (number or numeric string).
func GetTime(values Values, key string) (time.Time, bool) {
	v, ok := values[key]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, true
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case int:
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// GetStringDefault extracts a string or returns the default value.
func GetStringDefault(values Values, key, defaultValue string) string {
	s, ok := GetString(values, key)
	if !ok {
		return defaultValue
	}
	return s
}

// GetIntDefault extracts an int or returns the default value.
func GetIntDefault(values Values, key string, defaultValue int) int {
	i, ok := GetInt(values, key)
	if !ok {
		return defaultValue
	}
	return i
}
