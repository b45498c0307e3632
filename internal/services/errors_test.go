package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"recap/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrPersistence, "ingest", "insert segments", "batch 2 failed", base)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ingest", "insert segments", "batch 2 failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", services.Wrap(services.ErrConfiguration, "llm", "init", "missing key", nil), true},
		{"input", services.Wrap(services.ErrInput, "summary", "gate", "too short", nil), true},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), true},
		{"transient", services.Wrap(services.ErrTransient, "llm", "call", "503", nil), false},
		{"external", services.Wrap(services.ErrExternal, "llm", "call", "400", nil), true},
		{"transient inside external", services.Wrap(services.ErrExternal, "slack", "post", "",
			services.Wrap(services.ErrTransient, "llm", "call", "503", nil)), false},
		{"not found", services.Wrap(services.ErrNotFound, "store", "get", "", nil), true},
		{"plain", errors.New("network unreachable"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.IsPermanent(tt.err); got != tt.want {
				t.Fatalf("IsPermanent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrNotFound, "store", "get", "", nil)); got != "not_found" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(errors.New("x")); got != "internal" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
