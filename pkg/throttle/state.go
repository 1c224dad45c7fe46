// Package throttle tracks server replication lag reported through maxlag
// errors. A Tracker records each observed lag; when backed by a shared Store
// (Redis), every client pointed at the same site can hold new calls until the
// server has had time to catch up.
package throttle

import (
	"time"
)

// Redis key layout for lag state. The site key is appended.
const (
	RedisKeyPrefix = "mwapi:lag:"
)

// LagState is the last server lag observed for a site.
type LagState struct {
	// Site identifies the API endpoint the lag was reported by.
	Site string `json:"site"`

	// Lag is the lag the server reported, already capped at the client's max wait.
	Lag time.Duration `json:"lag"`

	// Until is when the server is expected to accept requests again.
	Until time.Time `json:"until"`

	// ObservedAt is when the lag was recorded.
	ObservedAt time.Time `json:"observed_at"`
}

// Remaining returns the time left until the lag window ends.
// Returns 0 if it has already ended.
func (s *LagState) Remaining() time.Duration {
	if s == nil {
		return 0
	}
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

// IsLagging reports whether the lag window is still open.
func (s *LagState) IsLagging() bool {
	return s.Remaining() > 0
}

// IsStale returns true if the state is older than maxAge.
func (s *LagState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.ObservedAt) > maxAge
}
