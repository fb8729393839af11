package gormstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zoobzio/veil/keys"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every connection to ":memory:" is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	s := New(setupTestDB(t))
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newRecord(slot, material string) *keys.Record {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &keys.Record{
		Slot:        slot,
		Material:    []byte(material),
		EffectiveAt: now,
		ExpiresAt:   now.Add(24 * time.Hour),
		Active:      true,
		Status:      keys.StatusActive,
		Creator:     "SYSTEM",
		Remark:      "test",
	}
}

func TestStore_FindActive_Empty(t *testing.T) {
	s := setupStore(t)

	rec, err := s.FindActive(context.Background(), "phone")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_Replace_First(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	stored, err := s.Replace(ctx, 0, newRecord("phone", "0123456789abcdef"))
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.NotZero(t, stored.Version)
	assert.NotEmpty(t, stored.KeyID)
	assert.True(t, stored.Active)
	assert.Equal(t, keys.StatusActive, stored.Status)
	assert.Equal(t, []byte("0123456789abcdef"), stored.Material)
	assert.False(t, stored.ExpiresAt.IsZero())

	active, err := s.FindActive(ctx, "phone")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, stored.Version, active.Version)
	assert.Equal(t, stored.KeyID, active.KeyID)
}

func TestStore_Replace_Rotates(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	v1, err := s.Replace(ctx, 0, newRecord("phone", "aaaaaaaaaaaaaaaa"))
	require.NoError(t, err)
	v2, err := s.Replace(ctx, v1.Version, newRecord("phone", "bbbbbbbbbbbbbbbb"))
	require.NoError(t, err)

	assert.Greater(t, v2.Version, v1.Version)

	active, err := s.FindActive(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, v2.Version, active.Version)

	old, err := s.FindByVersion(ctx, "phone", v1.Version)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.False(t, old.Active)
	assert.Equal(t, keys.StatusInactive, old.Status)
	assert.Equal(t, []byte("aaaaaaaaaaaaaaaa"), old.Material)
}

func TestStore_Replace_StaleExpectation(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	v1, err := s.Replace(ctx, 0, newRecord("phone", "aaaaaaaaaaaaaaaa"))
	require.NoError(t, err)

	// A second writer that still believes the slot is empty loses.
	winner, err := s.Replace(ctx, 0, newRecord("phone", "bbbbbbbbbbbbbbbb"))
	require.NoError(t, err)
	assert.Equal(t, v1.Version, winner.Version)
	assert.Equal(t, v1.KeyID, winner.KeyID)

	history, err := s.History(ctx, "phone")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_Replace_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	const writers = 8
	results := make([]*keys.Record, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Replace(ctx, 0, newRecord("email", "cccccccccccccccc"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Version, results[i].Version, "writer %d saw a different winner", i)
	}

	history, err := s.History(ctx, "email")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_FindByVersion(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	phone, err := s.Replace(ctx, 0, newRecord("phone", "aaaaaaaaaaaaaaaa"))
	require.NoError(t, err)

	t.Run("any slot", func(t *testing.T) {
		rec, err := s.FindByVersion(ctx, "", phone.Version)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "phone", rec.Slot)
	})

	t.Run("wrong slot", func(t *testing.T) {
		rec, err := s.FindByVersion(ctx, "email", phone.Version)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("unknown version", func(t *testing.T) {
		rec, err := s.FindByVersion(ctx, "phone", phone.Version+100)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestStore_SlotsAndHistory(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	p1, err := s.Replace(ctx, 0, newRecord("phone", "aaaaaaaaaaaaaaaa"))
	require.NoError(t, err)
	_, err = s.Replace(ctx, p1.Version, newRecord("phone", "bbbbbbbbbbbbbbbb"))
	require.NoError(t, err)
	_, err = s.Replace(ctx, 0, newRecord("email", "cccccccccccccccc"))
	require.NoError(t, err)

	slots, err := s.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "phone"}, slots)

	history, err := s.History(ctx, "phone")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Greater(t, history[0].Version, history[1].Version)
	assert.True(t, history[0].Active)
	assert.False(t, history[1].Active)
}

func TestStore_WithManager(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	m := keys.NewManager(s)

	k1, err := m.GetActiveKey(ctx, "phone")
	require.NoError(t, err)
	assert.Len(t, k1.Material, keys.DefaultKeySize)

	k2, err := m.Rotate(ctx, "phone")
	require.NoError(t, err)
	assert.NotEqual(t, k1.Version, k2.Version)

	// A fresh manager over the same store resolves both versions.
	other := keys.NewManager(s)
	old, err := other.GetKeyByReference(ctx, "phone", k1.Version)
	require.NoError(t, err)
	assert.Equal(t, k1.Material, old.Material)

	current, err := other.GetActiveKey(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, k2.Version, current.Version)
	assert.Equal(t, k2.Material, current.Material)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "dsn", DefaultPool())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(DriverSQLite, ":memory:", DefaultPool())
	require.NoError(t, err)

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))

	rec, err := s.Replace(context.Background(), 0, newRecord("name", "dddddddddddddddd"))
	require.NoError(t, err)
	assert.NotZero(t, rec.Version)
}
