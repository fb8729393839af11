package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zoobzio/veil/keys"
)

// KeyModel is the gorm model of one key version.
type KeyModel struct {
	Version     int64      `gorm:"primaryKey;autoIncrement"`
	KeyID       string     `gorm:"type:char(36);not null;uniqueIndex:uk_veil_keys_key_id"`
	Slot        string     `gorm:"type:varchar(64);not null;index:idx_veil_keys_slot_active"`
	Material    []byte     `gorm:"not null"`
	EffectiveAt time.Time  `gorm:"not null"`
	ExpiresAt   *time.Time `gorm:"index"`
	Active      bool       `gorm:"not null;index:idx_veil_keys_slot_active"`
	Status      string     `gorm:"type:varchar(16);not null"`
	Creator     string     `gorm:"type:varchar(64)"`
	Remark      string     `gorm:"type:varchar(255)"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (KeyModel) TableName() string {
	return "veil_keys"
}

// BeforeCreate assigns a KeyID when the caller left it empty.
func (m *KeyModel) BeforeCreate(_ *gorm.DB) error {
	if m.KeyID == "" {
		m.KeyID = uuid.New().String()
	}
	return nil
}

// SlotModel holds the active version of each slot. Replace swaps it with a
// conditional update, so only one writer can move a slot forward.
type SlotModel struct {
	Slot      string    `gorm:"type:varchar(64);primaryKey"`
	Version   int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (SlotModel) TableName() string {
	return "veil_key_slots"
}

func fromRecord(r *keys.Record) *KeyModel {
	m := &KeyModel{
		KeyID:       r.KeyID,
		Slot:        r.Slot,
		Material:    r.Material,
		EffectiveAt: r.EffectiveAt,
		Active:      true,
		Status:      string(keys.StatusActive),
		Creator:     r.Creator,
		Remark:      r.Remark,
		CreatedAt:   r.CreatedAt,
	}
	if !r.ExpiresAt.IsZero() {
		t := r.ExpiresAt
		m.ExpiresAt = &t
	}
	return m
}

func (m *KeyModel) toRecord() *keys.Record {
	r := &keys.Record{
		Version:     m.Version,
		KeyID:       m.KeyID,
		Slot:        m.Slot,
		Material:    m.Material,
		EffectiveAt: m.EffectiveAt,
		Active:      m.Active,
		Status:      keys.Status(m.Status),
		Creator:     m.Creator,
		Remark:      m.Remark,
		CreatedAt:   m.CreatedAt,
	}
	if m.ExpiresAt != nil {
		r.ExpiresAt = *m.ExpiresAt
	}
	return r
}
