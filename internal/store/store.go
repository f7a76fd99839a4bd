package store

import (
	"context"
	"errors"
	"time"

	"github.com/openclaw/pairing-server-go/internal/model"
)

// ErrAlreadyClaimed is returned by Claim when another caller has already won
// the claim for this code.
var ErrAlreadyClaimed = errors.New("pairing code already claimed")

// PairingStore is a TTL-bounded key-value store for pairing code records.
// Expiry is owned by the store: an expired record is observably absent, and
// business logic never deletes records itself.
type PairingStore interface {
	// Put stores a fresh record under its code with the given TTL. It
	// returns stored=false without writing when a live record already
	// occupies the key, so callers redraw instead of clobbering someone
	// else's pairing.
	Put(ctx context.Context, code string, rec model.PairingCode, ttl time.Duration) (bool, error)

	// Get returns the live record for a code, or nil when the code is
	// absent or expired. Reads never mutate the record or its TTL.
	Get(ctx context.Context, code string) (*model.PairingCode, error)

	// Claim atomically marks an unclaimed record as claimed, filling the
	// audit fields and shortening the TTL to the retain window. Exactly one
	// of any set of concurrent callers succeeds; the rest receive
	// ErrAlreadyClaimed. A nil record with nil error means absent/expired.
	Claim(ctx context.Context, code, agentName, agentID string, claimedAt time.Time, retain time.Duration) (*model.PairingCode, error)
}
