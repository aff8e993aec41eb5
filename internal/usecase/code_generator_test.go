package usecase

import (
	"strings"
	"testing"
)

func TestGenerateAccessCode_Format(t *testing.T) {
	t.Parallel()

	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateAccessCode()
		if err != nil {
			t.Fatalf("generateAccessCode: %v", err)
		}
		if len(code) != 14 {
			t.Fatalf("expected XXXX-XXXX-XXXX (14 chars), got %q", code)
		}
		parts := strings.Split(code, "-")
		if len(parts) != 3 {
			t.Fatalf("expected 3 groups, got %q", code)
		}
		for _, p := range parts {
			if len(p) != 4 {
				t.Fatalf("group %q has wrong length in %q", p, code)
			}
			for _, ch := range p {
				if !strings.ContainsRune(alphabet, ch) {
					t.Fatalf("character %q outside the unambiguous alphabet in %q", ch, code)
				}
			}
		}
		seen[code] = true
	}
	// 32^12 combinations; 100 draws colliding would point at a broken reader.
	if len(seen) < 99 {
		t.Fatalf("suspicious number of duplicate codes: %d unique of 100", len(seen))
	}
}
