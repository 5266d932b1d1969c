package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"gorm.io/gorm"
)

// ClaimArtifacts is the observed evidence the artifact-driven stages are
// derived from.
type ClaimArtifacts struct {
	ScopeExists      bool
	DeltaCount       int64
	ApprovedDeltas   int64
	DefenseDocExists bool
}

// ComputeLifecycleStage derives the furthest artifact-entitled stage. Pure;
// never returns a stage earlier than current.
func ComputeLifecycleStage(current models.ClaimStage, artifacts ClaimArtifacts) models.ClaimStage {
	candidate := current

	if artifacts.ScopeExists && models.StageIndex(candidate) < models.StageIndex(models.ClaimStageScopeReview) {
		candidate = models.ClaimStageScopeReview
	}
	if artifacts.DeltaCount > 0 && models.StageIndex(candidate) < models.StageIndex(models.ClaimStageDeltaAnalysis) {
		candidate = models.ClaimStageDeltaAnalysis
	}
	if artifacts.DefenseDocExists && artifacts.ApprovedDeltas > 0 &&
		models.StageIndex(candidate) < models.StageIndex(models.ClaimStageSupplementPending) {
		candidate = models.ClaimStageSupplementPending
	}

	if models.StageIndex(candidate) > models.StageIndex(current) {
		return candidate
	}
	return current
}

type LifecycleResult struct {
	PreviousStage models.ClaimStage `json:"previous_stage"`
	NewStage      models.ClaimStage `json:"new_stage"`
	Advanced      bool              `json:"advanced"`
}

// AdvanceLifecycle recomputes the claim's stage from its stored artifacts
// and persists the result when it moved forward. Stages from awaiting_sol
// onward are operator territory and are never entered here.
func AdvanceLifecycle(ctx context.Context, businessId string, claimId int) (*LifecycleResult, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	claim, err := models.GetClaim(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}

	artifacts, err := observeArtifacts(ctx, businessId, claim)
	if err != nil {
		return nil, err
	}

	newStage := ComputeLifecycleStage(claim.CurrentStage, artifacts)
	result := &LifecycleResult{
		PreviousStage: claim.CurrentStage,
		NewStage:      newStage,
		Advanced:      newStage != claim.CurrentStage,
	}
	if !result.Advanced {
		return result, nil
	}

	err = commitStage(ctx, businessId, claimId, claim.CurrentStage, newStage, "artifact",
		fmt.Sprintf("Artifacts entitle claim to %s.", newStage))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OperatorTransition applies an explicit stage change requested by a human.
// Forward-only; backward moves are rejected, never silently dropped.
func OperatorTransition(ctx context.Context, businessId string, claimId int, target models.ClaimStage, reason string) (*LifecycleResult, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}
	if models.StageIndex(target) < 0 {
		return nil, utils.NewValidationError("stage", "invalid claim stage %q", target)
	}

	claim, err := models.GetClaim(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}

	if models.StageIndex(target) <= models.StageIndex(claim.CurrentStage) {
		return nil, utils.NewValidationError("stage",
			"claim is already at %s; lifecycle only moves forward", claim.CurrentStage)
	}

	if reason == "" {
		reason = fmt.Sprintf("Operator moved claim to %s.", target)
	}
	if err := commitStage(ctx, businessId, claimId, claim.CurrentStage, target, "operator", reason); err != nil {
		return nil, err
	}
	return &LifecycleResult{
		PreviousStage: claim.CurrentStage,
		NewStage:      target,
		Advanced:      true,
	}, nil
}

func observeArtifacts(ctx context.Context, businessId string, claim *models.Claim) (ClaimArtifacts, error) {
	var artifacts ClaimArtifacts

	scopeExists, err := models.ScopeDocumentExists(ctx, businessId, claim.ID)
	if err != nil {
		return artifacts, err
	}
	deltaCount, err := models.CountDeltas(ctx, businessId, claim.ID)
	if err != nil {
		return artifacts, err
	}
	approved, err := models.CountApprovedDeltas(ctx, businessId, claim.ID)
	if err != nil {
		return artifacts, err
	}

	artifacts.ScopeExists = scopeExists
	artifacts.DeltaCount = deltaCount
	artifacts.ApprovedDeltas = approved
	artifacts.DefenseDocExists = claim.DefenseDocumentUrl != ""
	return artifacts, nil
}

// commitStage persists a forward move with a stage guard in the WHERE
// clause. A concurrent mutation that already advanced the claim further
// makes the update a no-op, which keeps the stored index monotonic.
func commitStage(ctx context.Context, businessId string, claimId int,
	from models.ClaimStage, to models.ClaimStage, trigger string, reason string) error {

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Claim{}).
			Where("business_id = ? AND id = ? AND current_stage = ?", businessId, claimId, from).
			Update("current_stage", to)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.NewConflictError("claim %d changed stage concurrently", claimId)
		}

		return models.AppendClaimActivity(tx, ctx, businessId, claimId, models.ActivityActionStageAdvanced,
			from, to, reason,
			&models.ActivityDetails{StageAdvanced: &models.StageAdvancedDetails{Trigger: trigger}})
	})
}
