package utils

import (
	"strings"
	"testing"
)

func TestFingerprint_DeterministicAndSensitive(t *testing.T) {
	a := Fingerprint([]byte("roof scope v1"))
	b := Fingerprint([]byte("roof scope v1"))
	c := Fingerprint([]byte("roof scope v2"))

	if a != b {
		t.Fatalf("same content produced different digests: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different content produced same digest: %s", a)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestBuildCacheKey_Format(t *testing.T) {
	key := BuildCacheKey("defense_doc", "v2", "claim-42", "tone=formal")

	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		t.Fatalf("expected namespace:schemaVersion:hash, got %q", key)
	}
	if parts[0] != "defense_doc" || parts[1] != "v2" {
		t.Fatalf("unexpected prefix in %q", key)
	}
	if len(parts[2]) != 64 {
		t.Fatalf("expected sha256 hex suffix, got %q", parts[2])
	}
}

func TestBuildCacheKey_InputBoundariesDoNotCollide(t *testing.T) {
	k1 := BuildCacheKey("defense_doc", "v2", "ab", "c")
	k2 := BuildCacheKey("defense_doc", "v2", "a", "bc")
	if k1 == k2 {
		t.Fatalf("concatenation ambiguity: %q == %q", k1, k2)
	}
}

func TestBuildCacheKey_OptionChangesKey(t *testing.T) {
	base := BuildCacheKey("defense_doc", "v2", "claim-42", "digest-abc", "tone=formal")
	other := BuildCacheKey("defense_doc", "v2", "claim-42", "digest-abc", "tone=casual")
	if base == other {
		t.Fatal("generation option change did not change cache key")
	}

	// Schema version bump must invalidate old entries.
	bumped := BuildCacheKey("defense_doc", "v3", "claim-42", "digest-abc", "tone=formal")
	if base == bumped {
		t.Fatal("schema version bump did not change cache key")
	}
}
