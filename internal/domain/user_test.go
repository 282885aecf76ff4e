package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewProfile(t *testing.T) {
	p, err := NewProfile("Alice")
	if err != nil || p.Name != "Alice" {
		t.Fatalf("expected profile Alice, got %+v err=%v", p, err)
	}
	if _, err := NewProfile(""); !errors.Is(err, ErrDisplayNameEmpty) {
		t.Fatalf("expected ErrDisplayNameEmpty, got %v", err)
	}
	if _, err := NewProfile(strings.Repeat("x", MaxDisplayNameLen+1)); !errors.Is(err, ErrDisplayNameTooLong) {
		t.Fatalf("expected ErrDisplayNameTooLong, got %v", err)
	}
}
