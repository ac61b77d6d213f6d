package clock

import (
	"strings"
	"time"
)

// Clock supplies the current instant. Components take a Clock instead of
// calling time.Now so tick evaluation is deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by time.Now.
func System() Clock { return systemClock{} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Fixed returns a Clock pinned to t.
func Fixed(t time.Time) Clock { return fixedClock{t} }

// Zone resolves an IANA zone name, falling back to def and finally UTC when
// a name is empty or unknown.
func Zone(name, def string) *time.Location {
	for _, n := range []string{name, def} {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if loc, err := time.LoadLocation(n); err == nil {
			return loc
		}
	}
	return time.UTC
}
