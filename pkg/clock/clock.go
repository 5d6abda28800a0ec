// Package clock produces the canonical timestamps written to the ledger.
package clock

import "time"

// Layout is the canonical UTC timestamp format for ledger writes:
// RFC 3339 truncated to second precision.
const Layout = "2006-01-02T15:04:05Z"

// Clock yields the current time. Handlers take a Clock so tests can pin it.
type Clock func() time.Time

// System is the wall clock.
func System() time.Time { return time.Now() }

// Canonical renders t as the canonical UTC ledger timestamp string.
func Canonical(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(Layout)
}

// Parse reads a canonical ledger timestamp back into a UTC time.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}
