package extract

import "regexp"

var deadlineRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeDeadline returns s when it is shaped exactly like YYYY-MM-DD and
// nil otherwise. Only the shape is checked: "2025-13-40" is accepted.
func NormalizeDeadline(s string) *string {
	if !deadlineRE.MatchString(s) {
		return nil
	}
	return &s
}

// normalizeDeadlineValue validates a decoded JSON deadline. rejected is true
// when a non-null value was present but discarded.
func normalizeDeadlineValue(v any) (deadline *string, rejected bool) {
	if v == nil {
		return nil, false
	}
	s, ok := v.(string)
	if !ok {
		return nil, true
	}
	if d := NormalizeDeadline(s); d != nil {
		return d, false
	}
	return nil, true
}
