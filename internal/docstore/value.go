package docstore

import (
	"encoding/json"
	"math"
	"time"
)

// Int reads an integer field. Backends decode numbers differently
// (int64, float64, json.Number), so all of them are accepted; fractional
// values are floored. Non-numeric values and numbers outside the int64
// range report ok=false.
func Int(data Data, key string) (int64, bool) {
	switch v := data[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float32:
		return floorInt(float64(v))
	case float64:
		return floorInt(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floorInt(f)
	default:
		return 0, false
	}
}

func floorInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	// float64(MaxInt64) rounds up to 2^63, which is itself out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Float reads a numeric field as float64.
func Float(data Data, key string) (float64, bool) {
	switch v := data[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String reads a string field.
func String(data Data, key string) (string, bool) {
	s, ok := data[key].(string)
	return s, ok
}

// Time reads a timestamp field. JSON-backed stores keep timestamps as
// RFC 3339 strings.
func Time(data Data, key string) (time.Time, bool) {
	switch v := data[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}
