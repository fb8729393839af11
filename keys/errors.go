package keys

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound indicates the referenced key version does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidSlot indicates an empty or purely numeric slot name.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrStore indicates the key store failed.
	ErrStore = errors.New("key store failure")
)

// LookupError carries the reference that could not be resolved.
type LookupError struct {
	Slot    string
	Version int64
	Err     error
}

func (e *LookupError) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("%s: slot %q version %d", e.Err.Error(), e.Slot, e.Version)
	}
	return fmt.Sprintf("%s: slot %q", e.Err.Error(), e.Slot)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsKeyNotFound reports whether err is a key-not-found error.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
