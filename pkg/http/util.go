package http

import (
	"time"

	xutil "PowerLedger/pkg/util"
)

// ParseTimeDefault parses an RFC3339 time, a plain date or unix seconds,
// falling back to def.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }

// ParseBool parses an optional boolean query value.
func ParseBool(s string) (*bool, bool) { return xutil.ParseBool(s) }
