package mapper

import (
	"strconv"
	"strings"
	"time"
)

// Record is one projected row as field-name/value pairs.
type Record map[string]interface{}

// Get returns the value for a field, matching case-insensitively.
func (r Record) Get(field string) (interface{}, bool) {
	if v, ok := r[field]; ok {
		return v, true
	}
	lower := strings.ToLower(field)
	for k, v := range r {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

// GetString coerces a field to string.
func (r Record) GetString(field string) (string, error) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return "", r.mismatch(field, v, "string")
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", r.mismatch(field, v, "string")
	}
}

// GetInt64 coerces a field to int64. Fractional floats and non-numeric
// strings fail with TypeMismatchError.
func (r Record) GetInt64(field string) (int64, error) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return 0, r.mismatch(field, v, "int64")
	}
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t != float64(int64(t)) {
			return 0, r.mismatch(field, v, "int64")
		}
		return int64(t), nil
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, r.mismatch(field, v, "int64")
		}
		return i, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, r.mismatch(field, v, "int64")
	}
}

// GetFloat64 coerces a field to float64.
func (r Record) GetFloat64(field string) (float64, error) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return 0, r.mismatch(field, v, "float64")
	}
	switch t := v.(type) {
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, r.mismatch(field, v, "float64")
		}
		return f, nil
	default:
		return 0, r.mismatch(field, v, "float64")
	}
}

// GetBool coerces a field to bool. Accepts the common SQL bit encodings.
func (r Record) GetBool(field string) (bool, error) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return false, r.mismatch(field, v, "bool")
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(t) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, r.mismatch(field, v, "bool")
	default:
		return false, r.mismatch(field, v, "bool")
	}
}

// GetTime coerces a field to time.Time. Strings are tried against the
// wire formats the server emits.
func (r Record) GetTime(field string) (time.Time, error) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return time.Time{}, r.mismatch(field, v, "time.Time")
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
			"15:04:05",
		}
		for _, f := range formats {
			if parsed, err := time.Parse(f, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, r.mismatch(field, v, "time.Time")
	default:
		return time.Time{}, r.mismatch(field, v, "time.Time")
	}
}

func (r Record) mismatch(field string, value interface{}, target string) error {
	return &TypeMismatchError{Field: field, Value: value, Target: target}
}
