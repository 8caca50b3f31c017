package util

import (
	"strings"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	a := DeriveKey(AlbumKeyPrefix, "Kind of Blue", "PRF-1")
	b := DeriveKey(AlbumKeyPrefix, "  kind   of BLUE ", "PRF-1")
	if a != b {
		t.Errorf("expected cosmetic variants to share a key, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "ALB-") {
		t.Errorf("expected ALB- prefix, got %s", a)
	}

	c := DeriveKey(AlbumKeyPrefix, "Kind of Blue", "PRF-2")
	if a == c {
		t.Error("expected different performers to produce different keys")
	}

	// Part boundaries must matter
	if DeriveKey("X", "ab", "c") == DeriveKey("X", "a", "bc") {
		t.Error("expected part boundaries to affect the key")
	}
}

func TestDeriveKeyUnicodeForms(t *testing.T) {
	composed := "Dvo\u0159\u00e1k"
	decomposed := "Dvor\u030ca\u0301k"
	if DeriveKey(PerformerKeyPrefix, composed) != DeriveKey(PerformerKeyPrefix, decomposed) {
		t.Error("expected NFC and NFD forms to share a key")
	}
}
