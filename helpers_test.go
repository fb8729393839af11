package veil

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/veil/keys"
)

const testSalt = "pepper"

// Customer exercises every tag.
type Customer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" read.mask:"name"`
	Phone       string `json:"phone" write.digest:"auto" write.encrypt:"phone" read.decrypt:"auto" read.mask:"phone"`
	PhoneDigest string `json:"phone_digest"`
	Email       string `json:"email" write.digest:"EmailIdx" write.encrypt:"email" read.decrypt:"auto" read.mask:"email"`
	EmailIdx    string `json:"email_idx"`
	IDCard      string `json:"id_card" write.encrypt:"id_card" read.decrypt:"auto" read.mask:"id_card"`
	Note        string `json:"note"`
}

func (c Customer) Clone() Customer { return c }

func sampleCustomer() Customer {
	return Customer{
		ID:     7,
		Name:   "张三丰",
		Phone:  "13812345678",
		Email:  "usermail@example.com",
		IDCard: "310123199001011234",
		Note:   "vip",
	}
}

func newTestManager() *keys.Manager {
	return keys.NewManager(keys.NewMemoryStore())
}

func newTestCrypter(t *testing.T, opts ...CrypterOption) (*Crypter, *keys.Manager) {
	t.Helper()
	m := newTestManager()
	c, err := NewCrypter(m, opts...)
	if err != nil {
		t.Fatalf("NewCrypter() error: %v", err)
	}
	return c, m
}

func newTestPipeline(t *testing.T, opts ...PipelineOption) (*Pipeline, *keys.Manager) {
	t.Helper()
	c, m := newTestCrypter(t)
	d, err := NewDigester(testSalt)
	if err != nil {
		t.Fatalf("NewDigester() error: %v", err)
	}
	p, err := NewPipeline(c, d, opts...)
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	return p, m
}

// brokenSource fails every lookup.
type brokenSource struct{}

var errSourceDown = errors.New("key source down")

func (brokenSource) GetActiveKey(context.Context, string) (keys.Key, error) {
	return keys.Key{}, errSourceDown
}

func (brokenSource) GetKeyByReference(context.Context, string, int64) (keys.Key, error) {
	return keys.Key{}, errSourceDown
}
