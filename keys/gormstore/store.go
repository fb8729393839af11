// Package gormstore persists keys.Record rows with gorm. MySQL, PostgreSQL
// and SQLite are supported.
package gormstore

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zoobzio/veil/keys"
)

// errLostRace aborts a Replace transaction that another writer beat.
var errLostRace = errors.New("slot moved on")

// Store implements keys.Store.
type Store struct {
	db *gorm.DB
}

var _ keys.Store = (*Store)(nil)

// New returns a Store over db. Call Migrate before first use unless the
// schema is managed elsewhere.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the key tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&KeyModel{}, &SlotModel{}); err != nil {
		slog.ErrorContext(ctx, "failed to migrate key tables",
			"operation", "migrate",
			"error", err,
		)
		return err
	}
	return nil
}

// FindActive implements keys.Store.
func (s *Store) FindActive(ctx context.Context, slot string) (*keys.Record, error) {
	var model KeyModel
	err := s.db.WithContext(ctx).
		Where("slot = ? AND active = ?", slot, true).
		Order("version DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find active key",
			"operation", "find_active",
			"slot", slot,
			"error", err,
		)
		return nil, err
	}
	return model.toRecord(), nil
}

// FindByVersion implements keys.Store.
func (s *Store) FindByVersion(ctx context.Context, slot string, version int64) (*keys.Record, error) {
	var model KeyModel
	q := s.db.WithContext(ctx).Where("version = ?", version)
	if slot != "" {
		q = q.Where("slot = ?", slot)
	}
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find key version",
			"operation", "find_by_version",
			"slot", slot,
			"version", version,
			"error", err,
		)
		return nil, err
	}
	return model.toRecord(), nil
}

// Replace implements keys.Store. The new row and the slot pointer move in
// one transaction; a writer whose expected version is stale rolls back and
// receives the row that beat it.
func (s *Store) Replace(ctx context.Context, prev int64, next *keys.Record) (*keys.Record, error) {
	model := fromRecord(next)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head := SlotModel{Slot: next.Slot}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&head).Error; err != nil {
			return err
		}

		if err := tx.Create(model).Error; err != nil {
			return err
		}

		moved := tx.Model(&SlotModel{}).
			Where("slot = ? AND version IN ?", next.Slot, []int64{prev, 0}).
			Update("version", model.Version)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			return errLostRace
		}

		return tx.Model(&KeyModel{}).
			Where("slot = ? AND active = ? AND version <> ?", next.Slot, true, model.Version).
			Updates(map[string]any{"active": false, "status": string(keys.StatusInactive)}).Error
	})

	if errors.Is(err, errLostRace) {
		slog.InfoContext(ctx, "key replace lost to a concurrent writer",
			"operation", "replace",
			"slot", next.Slot,
			"expected", prev,
		)
		winner, ferr := s.FindActive(ctx, next.Slot)
		if ferr != nil {
			return nil, ferr
		}
		if winner == nil {
			return nil, errLostRace
		}
		return winner, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to replace key",
			"operation", "replace",
			"slot", next.Slot,
			"expected", prev,
			"error", err,
		)
		return nil, err
	}
	return model.toRecord(), nil
}

// Slots implements keys.Store.
func (s *Store) Slots(ctx context.Context) ([]string, error) {
	var slots []string
	err := s.db.WithContext(ctx).
		Model(&KeyModel{}).
		Distinct().
		Order("slot").
		Pluck("slot", &slots).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list slots",
			"operation", "slots",
			"error", err,
		)
		return nil, err
	}
	return slots, nil
}

// History implements keys.Store.
func (s *Store) History(ctx context.Context, slot string) ([]*keys.Record, error) {
	var models []KeyModel
	err := s.db.WithContext(ctx).
		Where("slot = ?", slot).
		Order("version DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list key history",
			"operation", "history",
			"slot", slot,
			"error", err,
		)
		return nil, err
	}

	out := make([]*keys.Record, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, nil
}
