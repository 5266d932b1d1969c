package workflow

import (
	"reflect"
	"testing"

	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"github.com/shopspring/decimal"
)

// fullRoofingScope covers every roofing required item with plausible
// quantities for a 30-square roof.
func fullRoofingScope() []models.ScopeLineItem {
	qty := func(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
	return []models.ScopeLineItem{
		{Code: "RFG DRIP", Description: "Drip edge", Quantity: qty(320), Unit: "LF"},
		{Code: "RFG IWS", Description: "Ice & water shield", Quantity: qty(200), Unit: "SF"},
		{Code: "RFG FELT", Description: "Synthetic underlayment", Quantity: qty(30), Unit: "SQ"},
		{Code: "RFG STEP", Description: "Step flashing", Quantity: qty(40), Unit: "LF"},
		{Code: "RFG RIDGC", Description: "Hip and ridge cap shingles", Quantity: qty(60), Unit: "LF"},
		{Code: "RFG VENT", Description: "Ridge vent", Quantity: qty(40), Unit: "LF"},
	}
}

func TestComputeCandidateDeltasCompleteScope(t *testing.T) {
	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), fullRoofingScope(), nil)
	if len(got) != 0 {
		t.Fatalf("complete scope should produce no deltas, got %d: %+v", len(got), got)
	}
}

func TestComputeCandidateDeltasMissingItem(t *testing.T) {
	items := fullRoofingScope()[1:] // remove drip edge

	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), items, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 delta, got %d: %+v", len(got), got)
	}
	delta := got[0]
	if delta.DeltaType != models.DeltaTypeMissing {
		t.Errorf("delta type = %s, want missing", delta.DeltaType)
	}
	if delta.ItemCode != "RFG DRIP" {
		t.Errorf("item code = %q, want RFG DRIP", delta.ItemCode)
	}
	if delta.Facts.CodeCitation == "" {
		t.Errorf("missing delta should carry its code citation")
	}
	// 10 LF per square on a 30-square roof
	if delta.Quantity == nil || !delta.Quantity.Equal(decimal.NewFromInt(300)) {
		t.Errorf("quantity = %v, want 300", delta.Quantity)
	}
	if delta.EstimatedValue == nil || !delta.EstimatedValue.Equal(decimal.NewFromFloat(855)) {
		t.Errorf("estimated value = %v, want 855.00", delta.EstimatedValue)
	}
}

func TestComputeCandidateDeltasUnderscopedItem(t *testing.T) {
	items := fullRoofingScope()
	// Carrier allows 120 LF of drip edge against a 300 LF floor.
	items[0].Quantity = decimal.NewFromInt(120)

	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), items, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 delta, got %d: %+v", len(got), got)
	}
	delta := got[0]
	if delta.DeltaType != models.DeltaTypeUnderscoped {
		t.Errorf("delta type = %s, want underscoped", delta.DeltaType)
	}
	if delta.Quantity == nil || !delta.Quantity.Equal(decimal.NewFromInt(180)) {
		t.Errorf("shortfall quantity = %v, want 180", delta.Quantity)
	}
	if delta.Facts.CarrierQty != "120 LF" {
		t.Errorf("carrier qty fact = %q, want \"120 LF\"", delta.Facts.CarrierQty)
	}
	if delta.Facts.ExpectedQty != "300 LF" {
		t.Errorf("expected qty fact = %q, want \"300 LF\"", delta.Facts.ExpectedQty)
	}
}

func TestComputeCandidateDeltasPhotoEvidence(t *testing.T) {
	photos := []*models.PhotoAnalysis{
		{ID: 7, DamageType: "Hail", Severity: 4, Description: "Bruising across south slope"},
	}

	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), fullRoofingScope(), photos)
	if len(got) != 1 {
		t.Fatalf("expected 1 delta, got %d: %+v", len(got), got)
	}
	delta := got[0]
	if delta.DeltaType != models.DeltaTypeRecommendAdd {
		t.Errorf("delta type = %s, want recommend_add", delta.DeltaType)
	}
	if delta.PhotoAnalysisId == nil || *delta.PhotoAnalysisId != 7 {
		t.Errorf("photo analysis id = %v, want 7", delta.PhotoAnalysisId)
	}
	if delta.Facts.EvidenceSummary == "" {
		t.Errorf("photo delta should carry an evidence summary")
	}
}

func TestComputeCandidateDeltasPhotoAlreadyInScope(t *testing.T) {
	items := append(fullRoofingScope(), models.ScopeLineItem{
		Code:        "RFG SHGL",
		Description: "Replace hail damaged shingles",
		Quantity:    decimal.NewFromInt(30),
		Unit:        "SQ",
	})
	photos := []*models.PhotoAnalysis{
		{ID: 1, DamageType: "hail", Severity: 3},
	}

	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), items, photos)
	if len(got) != 0 {
		t.Fatalf("photo damage reflected in scope should produce no delta, got %+v", got)
	}
}

func TestComputeCandidateDeltasDeduplicates(t *testing.T) {
	photos := []*models.PhotoAnalysis{
		{ID: 1, DamageType: "Hail", Severity: 3},
		{ID: 2, DamageType: "hail", Severity: 4},
	}

	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), fullRoofingScope(), photos)
	if len(got) != 1 {
		t.Fatalf("two photos of the same damage type should collapse to 1 delta, got %d", len(got))
	}
}

func TestComputeCandidateDeltasDeterministic(t *testing.T) {
	items := fullRoofingScope()[2:]
	photos := []*models.PhotoAnalysis{
		{ID: 5, DamageType: "Wind", Severity: 2},
	}
	squares := decimal.NewFromInt(24)

	first := ComputeCandidateDeltas(models.TradeTypeRoofing, squares, items, photos)
	second := ComputeCandidateDeltas(models.TradeTypeRoofing, squares, items, photos)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same inputs produced different candidates:\n%+v\n%+v", first, second)
	}
}

func TestComputeCandidateDeltasNoSquares(t *testing.T) {
	// Without a measured square count there is no plausibility floor, so a
	// present-but-low drip edge line is not flagged.
	items := fullRoofingScope()
	items[0].Quantity = decimal.NewFromInt(5)

	got := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.Zero, items, nil)
	if len(got) != 0 {
		t.Fatalf("no square count should disable underscope detection, got %+v", got)
	}
}

func TestFilterReviewedDuplicatesDropsDecidedDiscrepancy(t *testing.T) {
	fresh := []*models.DeltaItem{
		{DeltaType: models.DeltaTypeMissing, ItemCode: "RFG DRIP", ItemDescription: "Drip edge", Status: models.DeltaStatusIdentified},
		{DeltaType: models.DeltaTypeMissing, ItemCode: "RFG IWS", ItemDescription: "Ice & water shield", Status: models.DeltaStatusIdentified},
	}
	reviewed := []*models.DeltaItem{
		{DeltaType: models.DeltaTypeMissing, ItemCode: "RFG DRIP", ItemDescription: "Drip edge", Status: models.DeltaStatusApproved},
	}

	kept := FilterReviewedDuplicates(fresh, reviewed)
	if len(kept) != 1 {
		t.Fatalf("expected 1 delta after filtering, got %d: %+v", len(kept), kept)
	}
	if kept[0].ItemCode != "RFG IWS" {
		t.Errorf("kept %q, want the undecided RFG IWS delta", kept[0].ItemCode)
	}
}

func TestFilterReviewedDuplicatesReRunAfterApproval(t *testing.T) {
	// Approving a delta and re-running reconciliation with unchanged inputs
	// must not resurrect it as a second identified row.
	items := fullRoofingScope()[1:] // drip edge missing
	candidates := ComputeCandidateDeltas(models.TradeTypeRoofing, decimal.NewFromInt(30), items, nil)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	toItems := func(cs []CandidateDelta) []*models.DeltaItem {
		var out []*models.DeltaItem
		for _, c := range cs {
			out = append(out, &models.DeltaItem{
				DeltaType:       c.DeltaType,
				ItemCode:        c.ItemCode,
				ItemDescription: c.ItemDescription,
				Status:          models.DeltaStatusIdentified,
			})
		}
		return out
	}

	firstRun := FilterReviewedDuplicates(toItems(candidates), nil)
	if len(firstRun) != 1 {
		t.Fatalf("first run should insert the delta, got %d", len(firstRun))
	}

	approved := *firstRun[0]
	approved.Status = models.DeltaStatusApproved

	secondRun := FilterReviewedDuplicates(toItems(candidates), []*models.DeltaItem{&approved})
	if len(secondRun) != 0 {
		t.Errorf("second run duplicated an approved delta: %+v", secondRun)
	}
}

func TestFilterReviewedDuplicatesDeniedAlsoSticks(t *testing.T) {
	photoId := 7
	fresh := []*models.DeltaItem{
		{DeltaType: models.DeltaTypeRecommendAdd, ItemDescription: "Repair for hail damage", PhotoAnalysisId: &photoId, Status: models.DeltaStatusIdentified},
	}
	reviewed := []*models.DeltaItem{
		{DeltaType: models.DeltaTypeRecommendAdd, ItemDescription: "Repair for hail damage", Status: models.DeltaStatusDenied},
	}

	if kept := FilterReviewedDuplicates(fresh, reviewed); len(kept) != 0 {
		t.Errorf("denied discrepancy came back: %+v", kept)
	}
}
