package time

import "time"

// UnixNano returns 0 for the zero time instead of an undefined value.
func UnixNano(t time.Time) int64 {
	v := int64(0)
	if !t.IsZero() {
		v = t.UnixNano()
	}
	return v
}

// Unix returns the zero time for (0, 0).
func Unix(sec int64, nsec int64) time.Time {
	if sec != 0 || nsec != 0 {
		return time.Unix(sec, nsec)
	}
	return time.Time{}
}
