// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_CreatesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	for _, want := range []string{"first", "second"} {
		if err := AtomicWriteFile(path, []byte(want), 0600); err != nil {
			t.Fatalf("AtomicWriteFile(%q) failed: %v", want, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(data) != want {
			t.Errorf("Content mismatch: got %q, want %q", string(data), want)
		}
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 file in dir, got %d", len(entries))
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hola", 10, "hola"},
		{"exact", "hola", 4, "hola"},
		{"ascii cut", "hola mundo", 7, "hola..."},
		{"accents", "reunión agendada", 8, "reuni..."},
		{"tiny", "llamada", 2, "ll"},
		{"zero", "llamada", 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateRunes(tc.in, tc.max); got != tc.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := TruncateWidth("hola", 10); got != "hola" {
		t.Errorf("TruncateWidth short = %q, want %q", got, "hola")
	}
	got := TruncateWidth("proyectos 🎯🎯🎯🎯", 12)
	if w := StringWidth(got); w > 12 {
		t.Errorf("TruncateWidth width = %d, want <= 12", w)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("TruncateWidth = %q, want ellipsis", got)
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("uno dos tres cuatro", 8)
	for _, line := range strings.Split(got, "\n") {
		if w := StringWidth(line); w > 8 {
			t.Errorf("line %q has width %d, want <= 8", line, w)
		}
	}
	if want := "uno dos\ntres\ncuatro"; got != want {
		t.Errorf("Wrap = %q, want %q", got, want)
	}
	if got := Wrap("a\nb", 10); got != "a\nb" {
		t.Errorf("Wrap keeps newlines: got %q", got)
	}
}

func TestRuneLen(t *testing.T) {
	if got := RuneLen("reunión"); got != 7 {
		t.Errorf("RuneLen = %d, want 7", got)
	}
}
