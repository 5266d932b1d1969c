package workflow

import (
	"context"
	"strings"
	"testing"

	"bitbucket.org/ridgelinecs/supplements_backend/models"
)

func TestRenderJustificationTemplateMissing(t *testing.T) {
	got := RenderJustificationTemplate(JustificationFacts{
		DeltaType:       models.DeltaTypeMissing,
		ItemDescription: "Drip edge",
		CodeCitation:    "IRC R905.2.8.5",
	})
	want := "The carrier estimate omits drip edge. Required per IRC R905.2.8.5."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderJustificationTemplateUnderscoped(t *testing.T) {
	got := RenderJustificationTemplate(JustificationFacts{
		DeltaType:       models.DeltaTypeUnderscoped,
		ItemDescription: "Drip edge",
		CarrierQty:      "120 LF",
		ExpectedQty:     "300 LF",
	})
	want := "The carrier estimate underscopes drip edge (carrier: 120 LF, required: 300 LF)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderJustificationTemplateRecommendAdd(t *testing.T) {
	got := RenderJustificationTemplate(JustificationFacts{
		DeltaType:       models.DeltaTypeRecommendAdd,
		ItemDescription: "Hail damage repair",
		EvidenceSummary: "photo shows hail damage (severity 4/5)",
	})
	want := "Documented damage supports adding hail damage repair. Evidence: photo shows hail damage (severity 4/5)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderJustificationTemplateTrimsEvidencePeriod(t *testing.T) {
	got := RenderJustificationTemplate(JustificationFacts{
		DeltaType:       models.DeltaTypeRecommendAdd,
		ItemDescription: "Siding replacement",
		EvidenceSummary: "photo shows wind damage (severity 3/5).",
	})
	if strings.Contains(got, "..") {
		t.Errorf("evidence period not trimmed: %q", got)
	}
}

func TestTemplateJustifierNeverErrors(t *testing.T) {
	text, err := TemplateJustifier{}.Generate(context.Background(), JustificationFacts{
		DeltaType:       models.DeltaTypeMissing,
		ItemDescription: "Starter strip",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text == "" {
		t.Errorf("expected non-empty justification")
	}
}
