// Package testing provides test utilities for veil.
package testing

import (
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/veil"
	"github.com/zoobzio/veil/keys"
)

// TestSalt is the digest salt used by helpers.
const TestSalt = "veil-test-salt"

// TestMaterial returns fixed 16-byte key material.
func TestMaterial() []byte {
	return []byte("0123456789abcdef")
}

// Clock is a settable time source for keys.WithClock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a Clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// NewManager returns a key manager over a fresh in-memory store.
func NewManager(opts ...keys.Option) *keys.Manager {
	return keys.NewManager(keys.NewMemoryStore(), opts...)
}

// NewPipeline returns a pipeline with default crypto over a fresh
// in-memory key store. It fails tb on setup errors.
func NewPipeline(tb testing.TB, opts ...veil.PipelineOption) *veil.Pipeline {
	tb.Helper()
	p, _ := NewPipelineWithManager(tb, opts...)
	return p
}

// NewPipelineWithManager is NewPipeline that also returns the key manager.
func NewPipelineWithManager(tb testing.TB, opts ...veil.PipelineOption) (*veil.Pipeline, *keys.Manager) {
	tb.Helper()
	m := NewManager()
	c, err := veil.NewCrypter(m)
	if err != nil {
		tb.Fatalf("NewCrypter() error: %v", err)
	}
	d, err := veil.NewDigester(TestSalt)
	if err != nil {
		tb.Fatalf("NewDigester() error: %v", err)
	}
	p, err := veil.NewPipeline(c, d, opts...)
	if err != nil {
		tb.Fatalf("NewPipeline() error: %v", err)
	}
	return p, m
}

// SimpleUser is a test type with no transformation tags.
type SimpleUser struct {
	ID   string `json:"id" xml:"id" yaml:"id" bson:"id"`
	Name string `json:"name" xml:"name" yaml:"name" bson:"name"`
}

// Clone implements Cloner[SimpleUser].
func (u SimpleUser) Clone() SimpleUser { return u }

// Customer is a test type carrying every veil tag, with field names for
// each codec.
type Customer struct {
	ID          string   `json:"id" xml:"id" yaml:"id" bson:"id"`
	Name        string   `json:"name" xml:"name" yaml:"name" bson:"name" read.mask:"name"`
	Phone       string   `json:"phone" xml:"phone" yaml:"phone" bson:"phone" write.digest:"auto" write.encrypt:"phone" read.decrypt:"auto" read.mask:"phone"`
	PhoneDigest string   `json:"phone_digest" xml:"phone_digest" yaml:"phone_digest" bson:"phone_digest"`
	Email       string   `json:"email" xml:"email" yaml:"email" bson:"email" write.encrypt:"email" read.decrypt:"auto" read.mask:"email"`
	Tags        []string `json:"tags" xml:"tag" yaml:"tags" bson:"tags" write.encrypt:"tags" read.decrypt:"auto"`
}

// Clone implements Cloner[Customer].
func (c Customer) Clone() Customer {
	if c.Tags != nil {
		tags := make([]string, len(c.Tags))
		copy(tags, c.Tags)
		c.Tags = tags
	}
	return c
}

// SampleCustomer returns a Customer with plaintext values.
func SampleCustomer() Customer {
	return Customer{
		ID:    "c-1",
		Name:  "张三丰",
		Phone: "13812345678",
		Email: "usermail@example.com",
		Tags:  []string{"vip", "beta"},
	}
}

// Masked is what SampleCustomer reads back as after a round trip.
func Masked() Customer {
	return Customer{
		ID:    "c-1",
		Name:  "张**",
		Phone: "138****5678",
		Email: "use****ail@example.com",
		Tags:  []string{"vip", "beta"},
	}
}
