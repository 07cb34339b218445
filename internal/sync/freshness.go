package sync

import (
	"time"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
)

// Freshness decides whether directory derived fields of a user are stale.
// A TTL of zero means always stale, so every authentication resyncs.
type Freshness struct {
	TTL time.Duration

	// Now is replaceable for tests, defaults to time.Now.
	Now func() time.Time
}

// NewFreshness builds a policy from the configured TTL in seconds.
func NewFreshness(ttlSeconds int) Freshness {
	return Freshness{
		TTL: time.Duration(ttlSeconds) * time.Second,
		Now: time.Now,
	}
}

// IsOutdated reports whether the user needs a directory resync.
// A user that never synced is always outdated.
func (f Freshness) IsOutdated(u *models.User) bool {
	if u.LastRefresh == nil {
		return true
	}

	if f.TTL <= 0 {
		return true
	}

	now := f.Now
	if now == nil {
		now = time.Now
	}

	return now().After(u.LastRefresh.Add(f.TTL))
}
