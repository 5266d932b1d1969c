package workflow

import (
	"testing"

	"bitbucket.org/ridgelinecs/supplements_backend/models"
)

func TestComputeLifecycleStage(t *testing.T) {
	tests := []struct {
		name      string
		current   models.ClaimStage
		artifacts ClaimArtifacts
		want      models.ClaimStage
	}{
		{
			name:    "no artifacts stays at intake",
			current: models.ClaimStageIntake,
			want:    models.ClaimStageIntake,
		},
		{
			name:      "scope moves intake to scope_review",
			current:   models.ClaimStageIntake,
			artifacts: ClaimArtifacts{ScopeExists: true},
			want:      models.ClaimStageScopeReview,
		},
		{
			name:      "deltas move to delta_analysis",
			current:   models.ClaimStageIntake,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 3},
			want:      models.ClaimStageDeltaAnalysis,
		},
		{
			name:      "deltas without scope still reach delta_analysis",
			current:   models.ClaimStageIntake,
			artifacts: ClaimArtifacts{DeltaCount: 1},
			want:      models.ClaimStageDeltaAnalysis,
		},
		{
			name:      "defense doc plus approval unlocks supplement_pending",
			current:   models.ClaimStageDeltaAnalysis,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 3, ApprovedDeltas: 1, DefenseDocExists: true},
			want:      models.ClaimStageSupplementPending,
		},
		{
			name:      "defense doc without approvals stays put",
			current:   models.ClaimStageDeltaAnalysis,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 3, DefenseDocExists: true},
			want:      models.ClaimStageDeltaAnalysis,
		},
		{
			name:      "approvals without defense doc stay put",
			current:   models.ClaimStageDeltaAnalysis,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 3, ApprovedDeltas: 2},
			want:      models.ClaimStageDeltaAnalysis,
		},
		{
			name:      "never moves backward from operator stages",
			current:   models.ClaimStageRebuttal,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 3, ApprovedDeltas: 1, DefenseDocExists: true},
			want:      models.ClaimStageRebuttal,
		},
		{
			name:      "completed stays completed",
			current:   models.ClaimStageCompleted,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 10, ApprovedDeltas: 10, DefenseDocExists: true},
			want:      models.ClaimStageCompleted,
		},
		{
			name:      "full artifacts jump intake straight to supplement_pending",
			current:   models.ClaimStageIntake,
			artifacts: ClaimArtifacts{ScopeExists: true, DeltaCount: 5, ApprovedDeltas: 2, DefenseDocExists: true},
			want:      models.ClaimStageSupplementPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLifecycleStage(tt.current, tt.artifacts)
			if got != tt.want {
				t.Errorf("ComputeLifecycleStage(%s, %+v) = %s, want %s", tt.current, tt.artifacts, got, tt.want)
			}
		})
	}
}

func TestComputeLifecycleStageIsIdempotent(t *testing.T) {
	artifacts := ClaimArtifacts{ScopeExists: true, DeltaCount: 2, ApprovedDeltas: 1, DefenseDocExists: true}
	first := ComputeLifecycleStage(models.ClaimStageIntake, artifacts)
	second := ComputeLifecycleStage(first, artifacts)
	if first != second {
		t.Errorf("recomputing with same artifacts moved %s to %s", first, second)
	}
}

func TestStageOrderIsMonotonic(t *testing.T) {
	stages := []models.ClaimStage{
		models.ClaimStageIntake,
		models.ClaimStageScopeReview,
		models.ClaimStageDeltaAnalysis,
		models.ClaimStageSupplementPending,
		models.ClaimStageAwaitingSOL,
		models.ClaimStageRebuttal,
		models.ClaimStageBuildScheduled,
		models.ClaimStagePostBuild,
		models.ClaimStageInvoicing,
		models.ClaimStageDepreciationPending,
		models.ClaimStageCompleted,
	}
	for i, s := range stages {
		if got := models.StageIndex(s); got != i {
			t.Errorf("StageIndex(%s) = %d, want %d", s, got, i)
		}
	}
	if models.StageIndex("made_up") != -1 {
		t.Errorf("StageIndex of unknown stage should be -1")
	}
}
