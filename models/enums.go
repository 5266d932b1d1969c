package models

import (
	"fmt"
)

// ClaimStage is the ordered, forward-only claim lifecycle. The slice below
// is the canonical order; StageIndex is position in that slice and the
// stored stage's index never decreases.
type ClaimStage string

const (
	ClaimStageIntake              ClaimStage = "intake"
	ClaimStageScopeReview         ClaimStage = "scope_review"
	ClaimStageDeltaAnalysis       ClaimStage = "delta_analysis"
	ClaimStageSupplementPending   ClaimStage = "supplement_pending"
	ClaimStageAwaitingSOL         ClaimStage = "awaiting_sol"
	ClaimStageRebuttal            ClaimStage = "rebuttal"
	ClaimStageBuildScheduled      ClaimStage = "build_scheduled"
	ClaimStagePostBuild           ClaimStage = "post_build"
	ClaimStageInvoicing           ClaimStage = "invoicing"
	ClaimStageDepreciationPending ClaimStage = "depreciation_pending"
	ClaimStageCompleted           ClaimStage = "completed"
)

var claimStageOrder = []ClaimStage{
	ClaimStageIntake,
	ClaimStageScopeReview,
	ClaimStageDeltaAnalysis,
	ClaimStageSupplementPending,
	ClaimStageAwaitingSOL,
	ClaimStageRebuttal,
	ClaimStageBuildScheduled,
	ClaimStagePostBuild,
	ClaimStageInvoicing,
	ClaimStageDepreciationPending,
	ClaimStageCompleted,
}

// StageIndex returns the stage's position in the lifecycle order, or -1 for
// an unknown stage.
func StageIndex(s ClaimStage) int {
	for i, stage := range claimStageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

func ParseClaimStage(s string) (ClaimStage, error) {
	stage := ClaimStage(s)
	if StageIndex(stage) < 0 {
		return "", fmt.Errorf("invalid claim stage %q", s)
	}
	return stage, nil
}

// DeltaType classifies a discrepancy between the carrier scope and the
// expected scope.
type DeltaType string

const (
	DeltaTypeMissing       DeltaType = "missing"
	DeltaTypeUnderscoped   DeltaType = "underscoped"
	DeltaTypeIncorrectCode DeltaType = "incorrect_code"
	DeltaTypeIncorrectQty  DeltaType = "incorrect_qty"
	DeltaTypeRecommendAdd  DeltaType = "recommend_add"
)

func ParseDeltaType(s string) (DeltaType, error) {
	switch t := DeltaType(s); t {
	case DeltaTypeMissing, DeltaTypeUnderscoped, DeltaTypeIncorrectCode,
		DeltaTypeIncorrectQty, DeltaTypeRecommendAdd:
		return t, nil
	}
	return "", fmt.Errorf("invalid delta type %q", s)
}

// DeltaStatus is the review mini-lifecycle. identified -> approved|denied,
// approved -> included. denied is terminal. Engine re-runs only ever touch
// rows still in identified.
type DeltaStatus string

const (
	DeltaStatusIdentified DeltaStatus = "identified"
	DeltaStatusApproved   DeltaStatus = "approved"
	DeltaStatusDenied     DeltaStatus = "denied"
	DeltaStatusIncluded   DeltaStatus = "included"
)

func ParseDeltaStatus(s string) (DeltaStatus, error) {
	switch st := DeltaStatus(s); st {
	case DeltaStatusIdentified, DeltaStatusApproved, DeltaStatusDenied, DeltaStatusIncluded:
		return st, nil
	}
	return "", fmt.Errorf("invalid delta status %q", s)
}

// CanTransitionDeltaStatus reports whether a reviewer may move a delta from
// one status to another.
func CanTransitionDeltaStatus(from DeltaStatus, to DeltaStatus) bool {
	switch from {
	case DeltaStatusIdentified:
		return to == DeltaStatusApproved || to == DeltaStatusDenied
	case DeltaStatusApproved:
		return to == DeltaStatusIncluded
	default:
		// denied and included are terminal
		return false
	}
}

// TradeType selects which block of the required-items table applies.
type TradeType string

const (
	TradeTypeRoofing  TradeType = "Roofing"
	TradeTypeSiding   TradeType = "Siding"
	TradeTypeGutters  TradeType = "Gutters"
	TradeTypeInterior TradeType = "Interior"
)

func ParseTradeType(s string) (TradeType, error) {
	switch t := TradeType(s); t {
	case TradeTypeRoofing, TradeTypeSiding, TradeTypeGutters, TradeTypeInterior:
		return t, nil
	}
	return "", fmt.Errorf("invalid trade type %q", s)
}

// ActivityAction tags each claim activity record and selects its details
// union variant.
type ActivityAction string

const (
	ActivityActionClaimCreated     ActivityAction = "claim_created"
	ActivityActionScopeUploaded    ActivityAction = "scope_uploaded"
	ActivityActionScopeIngested    ActivityAction = "scope_ingested"
	ActivityActionDeltasGenerated  ActivityAction = "deltas_generated"
	ActivityActionDeltaReviewed    ActivityAction = "delta_reviewed"
	ActivityActionStageAdvanced    ActivityAction = "stage_advanced"
	ActivityActionDefenseGenerated ActivityAction = "defense_generated"
)

type DamageSeverity int

const (
	DamageSeverityMin DamageSeverity = 1
	DamageSeverityMax DamageSeverity = 5
)

// Outbox publish states for the activity reporting dispatcher.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
