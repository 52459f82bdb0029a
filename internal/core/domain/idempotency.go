package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordTTL is how long a completed idempotency record stays live. A repeat
// of the same request inside this window returns the cached response instead
// of re-running the mutation.
const RecordTTL = 24 * time.Hour

// IdempotencyRecord caches the outcome of a mutating request under its
// client-supplied key.
//
// A record with a nil Response is pending: the key has been claimed but the
// underlying mutation has not finished yet. Pending records act as a mutual
// exclusion gate so that two concurrent requests carrying the same fresh key
// cannot both execute the mutation.
type IdempotencyRecord struct {
	Key       uuid.UUID `json:"key"`
	Response  []byte    `json:"response,omitempty"` // marshaled wallet, nil while pending
	ExpiresAt time.Time `json:"expires_at"`
}

// Pending reports whether the record is a gate claim without a result yet.
func (r *IdempotencyRecord) Pending() bool {
	return r.Response == nil
}

// Expired reports whether the record is past its logical expiry at the given
// instant. Expired records are inert and must be purged before the key can
// be claimed again.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
