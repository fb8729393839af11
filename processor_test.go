package veil

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// testCodec is a simple JSON codec for testing.
type testCodec struct{}

func (c *testCodec) ContentType() string { return "application/json" }

func (c *testCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *testCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// SimpleUser has no transformation tags.
type SimpleUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (u SimpleUser) Clone() SimpleUser { return u }

func newTestProcessor[T Cloner[T]](t *testing.T, opts ...PipelineOption) *Processor[T] {
	t.Helper()
	p, _ := newTestPipeline(t, opts...)
	proc, err := NewProcessor[T](&testCodec{}, p)
	if err != nil {
		t.Fatalf("NewProcessor() error: %v", err)
	}
	return proc
}

func TestNewProcessor(t *testing.T) {
	proc := newTestProcessor[SimpleUser](t)
	if proc == nil {
		t.Fatal("NewProcessor() returned nil")
	}
	if err := proc.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestNewProcessor_Invalid(t *testing.T) {
	p, _ := newTestPipeline(t)
	if _, err := NewProcessor[SimpleUser](nil, p); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewProcessor(nil codec) error = %v", err)
	}
	if _, err := NewProcessor[SimpleUser](&testCodec{}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewProcessor(nil pipeline) error = %v", err)
	}
}

func TestProcessor_StoreLoad(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor[Customer](t)

	original := sampleCustomer()
	data, err := proc.Store(ctx, &original)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	if strings.Contains(string(data), "13812345678") || strings.Contains(string(data), "usermail@example.com") {
		t.Errorf("Store() leaked plaintext: %s", data)
	}
	if original.Phone != "13812345678" || original.PhoneDigest != "" {
		t.Errorf("Store() modified the original: %+v", original)
	}

	var raw Customer
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if raw.PhoneDigest == "" || !strings.HasPrefix(raw.Phone, "$") {
		t.Errorf("stored row = %+v", raw)
	}

	loaded, err := proc.Load(ctx, data)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Phone != "138****5678" || loaded.Email != "use****ail@example.com" || loaded.IDCard != "310123********1234" {
		t.Errorf("Load() = %+v", loaded)
	}
}

func TestProcessor_SealUnseal(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor[Customer](t)

	c := sampleCustomer()
	sealed, err := proc.Seal(ctx, &c)
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	if sealed == &c || c.Phone != "13812345678" {
		t.Error("Seal() should work on a clone")
	}
	if !strings.HasPrefix(sealed.Phone, "$") {
		t.Errorf("sealed.Phone = %q", sealed.Phone)
	}

	out := proc.Unseal(ctx, sealed)
	if out.Phone != "138****5678" {
		t.Errorf("Unseal().Phone = %q", out.Phone)
	}

	if s, err := proc.Seal(ctx, nil); s != nil || err != nil {
		t.Errorf("Seal(nil) = (%v, %v)", s, err)
	}
	if proc.Unseal(ctx, nil) != nil {
		t.Error("Unseal(nil) != nil")
	}
}

func TestProcessor_StoreNil(t *testing.T) {
	proc := newTestProcessor[Customer](t)
	data, err := proc.Store(context.Background(), nil)
	if err != nil {
		t.Fatalf("Store(nil) error: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("Store(nil) = %s, want null", data)
	}
}

func TestProcessor_LoadInvalid(t *testing.T) {
	proc := newTestProcessor[Customer](t)
	_, err := proc.Load(context.Background(), []byte("{not json"))
	if !errors.Is(err, ErrUnmarshal) {
		t.Errorf("Load() error = %v, want ErrUnmarshal", err)
	}
	var ce *CodecError
	if !errors.As(err, &ce) || ce.Cause == nil {
		t.Errorf("Load() error = %v, want CodecError with cause", err)
	}
}

func TestProcessor_LoadPage(t *testing.T) {
	ctx := context.Background()
	proc := newTestProcessor[Customer](t)

	c := sampleCustomer()
	sealed, err := proc.Seal(ctx, &c)
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	data, _ := json.Marshal(Page[Customer]{Items: []Customer{*sealed}, Total: 1, Page: 1, Size: 20})

	page, err := proc.LoadPage(ctx, data)
	if err != nil {
		t.Fatalf("LoadPage() error: %v", err)
	}
	if page.Total != 1 || page.Size != 20 || len(page.Items) != 1 {
		t.Fatalf("LoadPage() = %+v", page)
	}
	if page.Items[0].Phone != "138****5678" {
		t.Errorf("Items[0].Phone = %q", page.Items[0].Phone)
	}
}

type ssnHolder struct {
	SSN string `json:"ssn" read.mask:"ssn"`
}

func (h ssnHolder) Clone() ssnHolder { return h }

func TestProcessor_ValidateMissingMasker(t *testing.T) {
	proc := newTestProcessor[ssnHolder](t)
	err := proc.Validate()
	if !errors.Is(err, ErrMask) {
		t.Fatalf("Validate() error = %v, want ErrMask", err)
	}
	if _, err := proc.Store(context.Background(), &ssnHolder{}); !errors.Is(err, ErrMask) {
		t.Errorf("Store() error = %v, want validation error", err)
	}

	ok := newTestProcessor[ssnHolder](t, WithMasker("ssn", MaskerFunc(func(string) string { return "***" })))
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() with masker error: %v", err)
	}
}

type ssnOwner struct {
	Holder *ssnHolder `json:"holder"`
}

func (o ssnOwner) Clone() ssnOwner { return o }

func TestProcessor_ValidateChecksPointees(t *testing.T) {
	proc := newTestProcessor[ssnOwner](t)
	if err := proc.Validate(); !errors.Is(err, ErrMask) {
		t.Errorf("Validate() error = %v, want ErrMask", err)
	}
}

type badTagged struct {
	V string `write.encrypt:"42"`
}

func (b badTagged) Clone() badTagged { return b }

func TestNewProcessor_InvalidTag(t *testing.T) {
	p, _ := newTestPipeline(t)
	if _, err := NewProcessor[badTagged](&testCodec{}, p); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("NewProcessor() error = %v, want ErrInvalidTag", err)
	}
}
