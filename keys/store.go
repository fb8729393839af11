package keys

import "context"

// Store persists key records. Lookups return nil, nil when nothing matches.
// Implementations must be safe for concurrent use.
type Store interface {
	// FindActive returns the active record with the highest version for slot.
	FindActive(ctx context.Context, slot string) (*Record, error)

	// FindByVersion returns the record with the given version. An empty slot
	// matches any slot.
	FindByVersion(ctx context.Context, slot string, version int64) (*Record, error)

	// Replace atomically installs next as the active record of next.Slot,
	// provided the slot's current active version is still prev (0 for none).
	// Every previously active record of the slot is deactivated. When another
	// writer got there first, Replace inserts nothing and returns the winner.
	Replace(ctx context.Context, prev int64, next *Record) (*Record, error)

	// Slots lists every slot that has at least one record.
	Slots(ctx context.Context) ([]string, error)

	// History lists all records of slot, newest first.
	History(ctx context.Context, slot string) ([]*Record, error)
}

// KMS wraps key material at rest.
type KMS interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
