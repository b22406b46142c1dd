package util

import "strconv"

// ParseBool parses an optional boolean. An empty string yields (nil, true)
// and an unparsable one (nil, false).
func ParseBool(s string) (*bool, bool) {
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, false
	}
	return &v, true
}
