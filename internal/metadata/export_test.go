package metadata

import "time"

// SetClock overrides the store clock in tests.
func SetClock(s *Store, now func() time.Time) {
	s.now = now
}
