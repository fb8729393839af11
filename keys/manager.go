package keys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const instrumentationName = "github.com/zoobzio/veil/keys"

const (
	// DefaultTTL is the validity window of generated keys.
	DefaultTTL = 24 * time.Hour

	// DefaultKeySize is the length in bytes of generated material.
	DefaultKeySize = 16
)

const (
	remarkGenerated = "Auto generated key"
	remarkSeeded    = "Configured initial key"
	remarkExpired   = "Expired key replaced"
	remarkRotated   = "Forced refresh"
)

// Manager hands out the active key per slot and resolves historical
// versions. Safe for concurrent use.
type Manager struct {
	store  Store
	kms    KMS
	now    func() time.Time
	ttl    time.Duration
	size   int
	seeds  map[string][]byte
	logger *slog.Logger

	tracer  trace.Tracer
	created metric.Int64Counter

	group singleflight.Group

	mu       sync.RWMutex
	active   map[string]*entry
	versions map[int64]*entry
}

// entry is a cached key whose material lives in an encrypted enclave.
type entry struct {
	slot      string
	version   int64
	expiresAt time.Time
	enclave   *memguard.Enclave
}

func (e *entry) key() (Key, error) {
	buf, err := e.enclave.Open()
	if err != nil {
		return Key{}, fmt.Errorf("open key enclave: %w", err)
	}
	defer buf.Destroy()
	return Key{
		Slot:     e.slot,
		Version:  e.version,
		Material: append([]byte(nil), buf.Bytes()...),
	}, nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithKMS wraps material with k before it reaches the store.
func WithKMS(k KMS) Option {
	return func(m *Manager) { m.kms = k }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTTL sets the validity window of new keys. Zero or less disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithKeySize sets the length of generated material.
func WithKeySize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.size = n
		}
	}
}

// WithSeed configures the material used for the first key of slot.
// See DecodeMaterial for how material is read.
func WithSeed(slot, material string) Option {
	return func(m *Manager) { m.seeds[slot] = DecodeMaterial(material) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTracerProvider sets the tracer provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(m *Manager) { m.created = newCreatedCounter(mp.Meter(instrumentationName)) }
}

// NewManager returns a Manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		now:      time.Now,
		ttl:      DefaultTTL,
		size:     DefaultKeySize,
		seeds:    make(map[string][]byte),
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
		created:  newCreatedCounter(otel.Meter(instrumentationName)),
		active:   make(map[string]*entry),
		versions: make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newCreatedCounter(meter metric.Meter) metric.Int64Counter {
	c, err := meter.Int64Counter("veil.keys.created",
		metric.WithDescription("Key versions installed by this process"),
	)
	if err != nil {
		return nil
	}
	return c
}

// DecodeMaterial reads configured key material. Valid standard base64 is
// decoded; anything else is taken as raw bytes.
func DecodeMaterial(s string) []byte {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) > 0 {
		return b
	}
	return []byte(s)
}

// ValidateSlot rejects names that cannot appear as an envelope identifier.
func ValidateSlot(slot string) error {
	if slot == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlot)
	}
	for _, r := range slot {
		if r < '0' || r > '9' {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is numeric", ErrInvalidSlot, slot)
}

// GetActiveKey returns the key new encryptions under slot must use. When the
// slot has no key, or its key has expired, a replacement is created. Racing
// creators converge on the single version the store accepted.
func (m *Manager) GetActiveKey(ctx context.Context, slot string) (Key, error) {
	if err := ValidateSlot(slot); err != nil {
		return Key{}, err
	}
	if k, ok := m.cachedActive(slot); ok {
		return k, nil
	}

	v, err, _ := m.group.Do("active/"+slot, func() (any, error) {
		return m.resolveActive(ctx, slot)
	})
	if err != nil {
		return Key{}, err
	}
	return copyKey(v.(Key)), nil
}

// GetKeyByReference resolves any version ever issued, active or not. An
// empty slot matches any slot.
func (m *Manager) GetKeyByReference(ctx context.Context, slot string, version int64) (Key, error) {
	if k, ok := m.cachedVersion(slot, version); ok {
		return k, nil
	}

	ctx, span := m.tracer.Start(ctx, "keys.GetKeyByReference", trace.WithAttributes(
		attribute.String("slot", slot),
		attribute.Int64("version", version),
	))
	defer span.End()

	rec, err := m.store.FindByVersion(ctx, slot, version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find by version")
		return Key{}, fmt.Errorf("%w: find version %d: %w", ErrStore, version, err)
	}
	if rec == nil {
		m.logger.WarnContext(ctx, "key version not found",
			"operation", "get_key_by_reference",
			"slot", slot,
			"version", version,
		)
		return Key{}, &LookupError{Slot: slot, Version: version, Err: ErrKeyNotFound}
	}
	return m.remember(ctx, rec)
}

// Rotate retires the active key of slot and installs a fresh one. Keys
// issued before the rotation stay resolvable by reference.
func (m *Manager) Rotate(ctx context.Context, slot string) (Key, error) {
	if err := ValidateSlot(slot); err != nil {
		return Key{}, err
	}
	return m.rotate(ctx, slot, 0, remarkRotated)
}

// rotate replaces expect, or whatever is active when expect is zero.
func (m *Manager) rotate(ctx context.Context, slot string, expect int64, remark string) (Key, error) {
	v, err, _ := m.group.Do("rotate/"+slot, func() (any, error) {
		ctx, span := m.tracer.Start(ctx, "keys.Rotate", trace.WithAttributes(attribute.String("slot", slot)))
		defer span.End()

		prev := expect
		if prev == 0 {
			current, err := m.store.FindActive(ctx, slot)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "find active")
				return nil, fmt.Errorf("%w: find active key for %q: %w", ErrStore, slot, err)
			}
			if current != nil {
				prev = current.Version
			}
		}
		material, err := m.generate()
		if err != nil {
			return nil, err
		}
		k, err := m.install(ctx, slot, prev, material, remark)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "install")
			return nil, err
		}
		if prev != 0 && k.Version != prev {
			emitKeyRotated(ctx, slot, prev, k.Version)
		}
		return k, nil
	})
	if err != nil {
		return Key{}, err
	}
	return copyKey(v.(Key)), nil
}

// Sweep rotates every slot whose active key has expired and returns the
// rotated slots. A failing slot does not stop the others; failures are
// joined into the returned error.
func (m *Manager) Sweep(ctx context.Context) ([]string, error) {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, "keys.Sweep")
	defer span.End()

	slots, err := m.knownSlots(ctx)
	if err != nil {
		span.RecordError(err)
		emitSweepComplete(ctx, 0, m.now().Sub(start), err)
		return nil, err
	}

	var rotated []string
	var errs []error
	for _, slot := range slots {
		rec, err := m.store.FindActive(ctx, slot)
		if err != nil {
			errs = append(errs, fmt.Errorf("slot %q: %w: %w", slot, ErrStore, err))
			continue
		}
		if rec == nil || !rec.Expired(m.now()) {
			continue
		}
		m.logger.InfoContext(ctx, "key expired, rotating",
			"operation", "sweep",
			"slot", slot,
			"version", rec.Version,
		)
		if _, err := m.rotate(ctx, slot, rec.Version, remarkExpired); err != nil {
			errs = append(errs, fmt.Errorf("slot %q: %w", slot, err))
			continue
		}
		rotated = append(rotated, slot)
	}

	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep")
		m.logger.ErrorContext(ctx, "sweep finished with failures",
			"operation", "sweep",
			"rotated", len(rotated),
			"error", err,
		)
	}
	emitSweepComplete(ctx, len(rotated), m.now().Sub(start), err)
	return rotated, err
}

// Bootstrap installs the configured seed material for every seeded slot
// that has no active key yet.
func (m *Manager) Bootstrap(ctx context.Context) error {
	slots := make([]string, 0, len(m.seeds))
	for slot := range m.seeds {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	for _, slot := range slots {
		if err := ValidateSlot(slot); err != nil {
			return err
		}
		rec, err := m.store.FindActive(ctx, slot)
		if err != nil {
			return fmt.Errorf("%w: find active key for %q: %w", ErrStore, slot, err)
		}
		if rec != nil {
			continue
		}
		if _, err := m.install(ctx, slot, 0, append([]byte(nil), m.seeds[slot]...), remarkSeeded); err != nil {
			return err
		}
	}
	m.logger.InfoContext(ctx, "key manager bootstrapped", "slots", len(slots))
	return nil
}

// History lists every version of slot, newest first, without material.
func (m *Manager) History(ctx context.Context, slot string) ([]Metadata, error) {
	recs, err := m.store.History(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("%w: history for %q: %w", ErrStore, slot, err)
	}
	out := make([]Metadata, len(recs))
	for i, r := range recs {
		out[i] = r.Metadata()
	}
	return out, nil
}

// Slots lists configured and persisted slots.
func (m *Manager) Slots(ctx context.Context) ([]string, error) {
	return m.knownSlots(ctx)
}

// Purge drops every cached key.
func (m *Manager) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = make(map[string]*entry)
	m.versions = make(map[int64]*entry)
}

func (m *Manager) resolveActive(ctx context.Context, slot string) (Key, error) {
	ctx, span := m.tracer.Start(ctx, "keys.GetActiveKey", trace.WithAttributes(attribute.String("slot", slot)))
	defer span.End()

	rec, err := m.store.FindActive(ctx, slot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find active")
		return Key{}, fmt.Errorf("%w: find active key for %q: %w", ErrStore, slot, err)
	}
	if rec != nil && !rec.Expired(m.now()) {
		return m.remember(ctx, rec)
	}

	var prev int64
	remark := remarkGenerated
	var material []byte
	if rec != nil {
		prev = rec.Version
		remark = remarkExpired
		m.logger.InfoContext(ctx, "active key expired, creating new version",
			"operation", "get_active_key",
			"slot", slot,
			"version", rec.Version,
		)
	} else if seed, ok := m.seeds[slot]; ok {
		material = append([]byte(nil), seed...)
		remark = remarkSeeded
	}
	if material == nil {
		if material, err = m.generate(); err != nil {
			return Key{}, err
		}
	}

	k, err := m.install(ctx, slot, prev, material, remark)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "install")
		return Key{}, err
	}
	if prev != 0 && k.Version != prev {
		emitKeyRotated(ctx, slot, prev, k.Version)
	}
	return k, nil
}

// install writes a new record for slot unless another writer already
// replaced prev, and returns whichever record won.
func (m *Manager) install(ctx context.Context, slot string, prev int64, material []byte, remark string) (Key, error) {
	stored := material
	if m.kms != nil {
		wrapped, err := m.kms.Encrypt(ctx, material)
		if err != nil {
			return Key{}, fmt.Errorf("wrap key material: %w", err)
		}
		stored = wrapped
	}

	now := m.now()
	next := &Record{
		KeyID:       uuid.New().String(),
		Slot:        slot,
		Material:    stored,
		EffectiveAt: now,
		Active:      true,
		Status:      StatusActive,
		Creator:     systemCreator,
		Remark:      remark,
		CreatedAt:   now,
	}
	if m.ttl > 0 {
		next.ExpiresAt = now.Add(m.ttl)
	}

	winner, err := m.store.Replace(ctx, prev, next)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to install key",
			"operation", "install",
			"slot", slot,
			"error", err,
		)
		return Key{}, fmt.Errorf("%w: install key for %q: %w", ErrStore, slot, err)
	}

	if winner.KeyID == next.KeyID {
		m.logger.InfoContext(ctx, "created new key version",
			"operation", "install",
			"slot", slot,
			"version", winner.Version,
			"remark", remark,
		)
		if m.created != nil {
			m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("slot", slot)))
		}
		emitKeyCreated(ctx, winner)
	} else {
		m.logger.DebugContext(ctx, "another writer installed the key",
			"operation", "install",
			"slot", slot,
			"version", winner.Version,
		)
	}
	return m.remember(ctx, winner)
}

// remember unwraps rec and caches it.
func (m *Manager) remember(ctx context.Context, rec *Record) (Key, error) {
	material := rec.Material
	if m.kms != nil {
		plain, err := m.kms.Decrypt(ctx, rec.Material)
		if err != nil {
			return Key{}, fmt.Errorf("unwrap key version %d: %w", rec.Version, err)
		}
		material = plain
	}

	k := Key{Slot: rec.Slot, Version: rec.Version, Material: append([]byte(nil), material...)}
	if len(material) == 0 {
		return k, nil
	}

	e := &entry{
		slot:      rec.Slot,
		version:   rec.Version,
		expiresAt: rec.ExpiresAt,
		// NewEnclave wipes its argument.
		enclave: memguard.NewEnclave(append([]byte(nil), material...)),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[rec.Version] = e
	if rec.Active && !rec.Expired(m.now()) {
		if cur, ok := m.active[rec.Slot]; !ok || cur.version <= rec.Version {
			m.active[rec.Slot] = e
		}
	}
	return k, nil
}

func (m *Manager) cachedActive(slot string) (Key, bool) {
	m.mu.RLock()
	e, ok := m.active[slot]
	m.mu.RUnlock()
	if !ok {
		return Key{}, false
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		if m.active[slot] == e {
			delete(m.active, slot)
		}
		m.mu.Unlock()
		return Key{}, false
	}
	k, err := e.key()
	if err != nil {
		return Key{}, false
	}
	return k, true
}

func (m *Manager) cachedVersion(slot string, version int64) (Key, bool) {
	m.mu.RLock()
	e, ok := m.versions[version]
	m.mu.RUnlock()
	if !ok || (slot != "" && e.slot != slot) {
		return Key{}, false
	}
	k, err := e.key()
	if err != nil {
		return Key{}, false
	}
	return k, true
}

func (m *Manager) knownSlots(ctx context.Context) ([]string, error) {
	persisted, err := m.store.Slots(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list slots: %w", ErrStore, err)
	}
	seen := make(map[string]struct{}, len(persisted)+len(m.seeds))
	var slots []string
	for _, s := range persisted {
		seen[s] = struct{}{}
		slots = append(slots, s)
	}
	for s := range m.seeds {
		if _, ok := seen[s]; !ok {
			slots = append(slots, s)
		}
	}
	sort.Strings(slots)
	return slots, nil
}

func (m *Manager) generate() ([]byte, error) {
	b := make([]byte, m.size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating key material: %w", err)
	}
	return b, nil
}

func copyKey(k Key) Key {
	k.Material = append([]byte(nil), k.Material...)
	return k
}
