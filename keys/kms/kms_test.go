package kms

import (
	"context"
	"errors"
	"testing"
)

func TestNew_RequiresKeyName(t *testing.T) {
	_, err := New(context.Background(), "")
	if !errors.Is(err, ErrNoKeyName) {
		t.Fatalf("New(\"\") error = %v, want ErrNoKeyName", err)
	}
}
