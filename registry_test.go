package veil_test

import (
	"testing"

	"github.com/zoobzio/veil"
	"github.com/zoobzio/veil/json"
	veiltest "github.com/zoobzio/veil/testing"
	"github.com/zoobzio/veil/yaml"
)

type CacheTestUser struct {
	Name string `json:"name"`
}

func (u CacheTestUser) Clone() CacheTestUser { return u }

func TestUse_Caching(t *testing.T) {
	veil.Reset() // Clear cache
	p := veiltest.NewPipeline(t)

	s1, err := veil.Use[CacheTestUser](json.New(), p)
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	s2, err := veil.Use[CacheTestUser](json.New(), p)
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	if s1 != s2 {
		t.Error("Use() should return cached processor")
	}
}

func TestUse_DifferentCodecs(t *testing.T) {
	veil.Reset()
	p := veiltest.NewPipeline(t)

	s1, _ := veil.Use[CacheTestUser](json.New(), p)
	s2, _ := veil.Use[CacheTestUser](yaml.New(), p)

	if s1 == s2 {
		t.Error("different codecs should yield different processors")
	}
}

func TestUse_DifferentPipelines(t *testing.T) {
	veil.Reset()

	s1, _ := veil.Use[CacheTestUser](json.New(), veiltest.NewPipeline(t))
	s2, _ := veil.Use[CacheTestUser](json.New(), veiltest.NewPipeline(t))

	if s1 == s2 {
		t.Error("different pipelines should yield different processors")
	}
}

func TestUse_NilCodec(t *testing.T) {
	if _, err := veil.Use[CacheTestUser](nil, veiltest.NewPipeline(t)); err == nil {
		t.Error("Use(nil codec) should fail")
	}
}

func TestReset(t *testing.T) {
	p := veiltest.NewPipeline(t)
	s1, _ := veil.Use[CacheTestUser](json.New(), p)

	veil.Reset()

	s2, _ := veil.Use[CacheTestUser](json.New(), p)

	if s1 == s2 {
		t.Error("Reset() should clear cache, new processor expected")
	}
}
