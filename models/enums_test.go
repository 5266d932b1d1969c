package models

import "testing"

func TestCanTransitionDeltaStatus(t *testing.T) {
	all := []DeltaStatus{DeltaStatusIdentified, DeltaStatusApproved, DeltaStatusDenied, DeltaStatusIncluded}
	allowed := map[[2]DeltaStatus]bool{
		{DeltaStatusIdentified, DeltaStatusApproved}: true,
		{DeltaStatusIdentified, DeltaStatusDenied}:   true,
		{DeltaStatusApproved, DeltaStatusIncluded}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]DeltaStatus{from, to}]
			if got := CanTransitionDeltaStatus(from, to); got != want {
				t.Errorf("CanTransitionDeltaStatus(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestParseDeltaStatus(t *testing.T) {
	if st, err := ParseDeltaStatus("approved"); err != nil || st != DeltaStatusApproved {
		t.Errorf("ParseDeltaStatus(approved) = %v, %v", st, err)
	}
	if _, err := ParseDeltaStatus("Approved"); err == nil {
		t.Errorf("expected error for wrong-case status")
	}
	if _, err := ParseDeltaStatus(""); err == nil {
		t.Errorf("expected error for empty status")
	}
}

func TestParseDeltaType(t *testing.T) {
	for _, s := range []string{"missing", "underscoped", "incorrect_code", "incorrect_qty", "recommend_add"} {
		if _, err := ParseDeltaType(s); err != nil {
			t.Errorf("ParseDeltaType(%s): %v", s, err)
		}
	}
	if _, err := ParseDeltaType("extra"); err == nil {
		t.Errorf("expected error for unknown delta type")
	}
}

func TestParseClaimStage(t *testing.T) {
	if stage, err := ParseClaimStage("delta_analysis"); err != nil || stage != ClaimStageDeltaAnalysis {
		t.Errorf("ParseClaimStage(delta_analysis) = %v, %v", stage, err)
	}
	if _, err := ParseClaimStage("closed"); err == nil {
		t.Errorf("expected error for unknown stage")
	}
}

func TestParseTradeType(t *testing.T) {
	if trade, err := ParseTradeType("Roofing"); err != nil || trade != TradeTypeRoofing {
		t.Errorf("ParseTradeType(Roofing) = %v, %v", trade, err)
	}
	if _, err := ParseTradeType("roofing"); err == nil {
		t.Errorf("trade types are case sensitive")
	}
}
