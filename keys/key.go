// Package keys manages versioned symmetric key material per logical slot.
//
// Every key ever handed out for encryption is retained. Rotation only flips
// the active flag of the previous version, so ciphertext produced under any
// version can still be opened by referencing that version.
package keys

import "time"

// Status is the lifecycle state of a key record.
type Status string

const (
	// StatusActive marks the record currently used for new encryptions.
	StatusActive Status = "ACTIVE"
	// StatusInactive marks a retired record kept for decryption.
	StatusInactive Status = "INACTIVE"
)

// Creator recorded on records the manager generates.
const systemCreator = "SYSTEM"

// Record is one persisted key version.
type Record struct {
	Version     int64 // store-assigned, unique and increasing
	KeyID       string
	Slot        string
	Material    []byte // wrapped when a KMS is configured
	EffectiveAt time.Time
	ExpiresAt   time.Time // zero means no expiry
	Active      bool
	Status      Status
	Creator     string
	Remark      string
	CreatedAt   time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Metadata is a record without its material.
type Metadata struct {
	Version     int64     `json:"version"`
	KeyID       string    `json:"key_id"`
	Slot        string    `json:"slot"`
	EffectiveAt time.Time `json:"effective_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`
	Status      Status    `json:"status"`
	Creator     string    `json:"creator"`
	Remark      string    `json:"remark"`
}

// Metadata strips the material from r.
func (r *Record) Metadata() Metadata {
	return Metadata{
		Version:     r.Version,
		KeyID:       r.KeyID,
		Slot:        r.Slot,
		EffectiveAt: r.EffectiveAt,
		ExpiresAt:   r.ExpiresAt,
		Active:      r.Active,
		Status:      r.Status,
		Creator:     r.Creator,
		Remark:      r.Remark,
	}
}

// Key is resolved, unwrapped key material.
type Key struct {
	Slot     string
	Version  int64
	Material []byte
}
