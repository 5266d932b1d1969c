package models

import (
	"encoding/json"
	"testing"
)

func TestDecodeActivityDetailsEmpty(t *testing.T) {
	details, err := DecodeActivityDetails(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details == nil || details.Other != nil {
		t.Errorf("empty payload should decode to empty details, got %+v", details)
	}
}

func TestDecodeActivityDetailsKnownVariant(t *testing.T) {
	raw, err := json.Marshal(ActivityDetails{
		ScopeIngested: &ScopeIngestedDetails{
			Reindexed:  true,
			ChunkCount: 12,
			TextDigest: "abc123",
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	details, err := DecodeActivityDetails(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.ScopeIngested == nil {
		t.Fatalf("scope_ingested variant not decoded: %+v", details)
	}
	if !details.ScopeIngested.Reindexed || details.ScopeIngested.ChunkCount != 12 ||
		details.ScopeIngested.TextDigest != "abc123" {
		t.Errorf("round trip mismatch: %+v", details.ScopeIngested)
	}
	if details.Other != nil {
		t.Errorf("known variant must not fall through to Other")
	}
}

func TestDecodeActivityDetailsMalformed(t *testing.T) {
	raw := []byte(`{"scope_ingested": not-json`)
	details, err := DecodeActivityDetails(raw)
	if err != nil {
		t.Fatalf("malformed payload must not error: %v", err)
	}
	if string(details.Other) != string(raw) {
		t.Errorf("malformed payload should be preserved in Other, got %q", details.Other)
	}
}

func TestDecodeActivityDetailsUnknownShape(t *testing.T) {
	raw := []byte(`{"legacy_event": {"code": 7}}`)
	details, err := DecodeActivityDetails(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(details.Other) != string(raw) {
		t.Errorf("unknown payload should be preserved in Other, got %q", details.Other)
	}
	if details.ScopeIngested != nil || details.DeltaReviewed != nil {
		t.Errorf("unknown payload must not populate variants: %+v", details)
	}
}
