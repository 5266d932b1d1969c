package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeltaItem is a single discrepancy between the carrier scope and the
// expected scope. Created by the reconciliation engine; reviewers change
// status only; re-runs replace content only while status is still
// identified. Rows a human has acted on are never overwritten.
type DeltaItem struct {
	ID          int         `gorm:"primary_key" json:"id"`
	ExternalId  string      `gorm:"size:36;not null;index" json:"external_id"`
	BusinessId  string      `gorm:"size:64;not null;index" json:"business_id"`
	ClaimId     int         `gorm:"not null;index" json:"claim_id"`
	DeltaType   DeltaType   `gorm:"type:enum('missing','underscoped','incorrect_code','incorrect_qty','recommend_add');not null" json:"delta_type"`
	Status      DeltaStatus `gorm:"type:enum('identified','approved','denied','included');default:identified;index" json:"status"`
	// Justification facts are stored alongside the prose so regeneration
	// can compare like with like.
	CodeCitation    string           `gorm:"size:255" json:"code_citation"`
	EvidenceSummary string           `gorm:"size:1000" json:"evidence_summary"`
	Justification   string           `gorm:"type:text" json:"justification"`
	PhotoAnalysisId *int             `gorm:"index;default:null" json:"photo_analysis_id"`
	ItemCode        string           `gorm:"size:50" json:"item_code"`
	ItemDescription string           `gorm:"size:500" json:"item_description"`
	Quantity        *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"quantity"`
	Unit            string           `gorm:"size:20" json:"unit"`
	EstimatedValue  *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"estimated_value"`
	ReviewedBy      string           `gorm:"size:100" json:"reviewed_by"`
	ReviewedAt      *time.Time       `gorm:"default:null" json:"reviewed_at"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d DeltaItem) GetBusinessId() string {
	return d.BusinessId
}

func GetDelta(ctx context.Context, businessId string, deltaId int) (*DeltaItem, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	var delta DeltaItem
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, deltaId).
		First(&delta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &delta, nil
}

func GetDeltas(ctx context.Context, businessId string, claimId int, status *DeltaStatus) ([]*DeltaItem, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ? AND claim_id = ?", businessId, claimId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var deltas []*DeltaItem
	if err := dbCtx.Order("id ASC").Find(&deltas).Error; err != nil {
		return nil, err
	}
	return deltas, nil
}

// UpdateDeltaStatus applies a reviewer decision. The status update is
// guarded by the current status in the WHERE clause, so a concurrent
// regeneration or a second reviewer hitting the same row loses cleanly
// instead of clobbering.
func UpdateDeltaStatus(ctx context.Context, businessId string, deltaId int, newStatus DeltaStatus, reviewer string) (*DeltaItem, error) {
	if _, err := ParseDeltaStatus(string(newStatus)); err != nil {
		return nil, utils.NewValidationError("status", "%v", err)
	}

	delta, err := GetDelta(ctx, businessId, deltaId)
	if err != nil {
		return nil, err
	}

	if !CanTransitionDeltaStatus(delta.Status, newStatus) {
		return nil, utils.NewConflictError("delta %d cannot move from %s to %s", deltaId, delta.Status, newStatus)
	}

	now := time.Now().UTC()
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&DeltaItem{}).
			Where("business_id = ? AND id = ? AND status = ?", businessId, deltaId, delta.Status).
			Updates(map[string]interface{}{
				"status":      newStatus,
				"reviewed_by": reviewer,
				"reviewed_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.NewConflictError("delta %d changed status concurrently", deltaId)
		}

		return createClaimActivity(tx, ctx, businessId, delta.ClaimId, ActivityActionDeltaReviewed,
			"", "", fmt.Sprintf("Delta %s marked %s.", delta.ExternalId, newStatus),
			&ActivityDetails{DeltaReviewed: &DeltaReviewedDetails{
				DeltaExternalId: delta.ExternalId,
				DeltaType:       delta.DeltaType,
				FromStatus:      delta.Status,
				ToStatus:        newStatus,
				Reviewer:        reviewer,
			}})
	})
	if err != nil {
		return nil, err
	}

	delta.Status = newStatus
	delta.ReviewedBy = reviewer
	delta.ReviewedAt = &now
	return delta, nil
}

// DeltaSummary statistics are computed on read, never stored.
type DeltaSummary struct {
	Total               int                 `json:"total"`
	CountByType         map[DeltaType]int   `json:"count_by_type"`
	CountByStatus       map[DeltaStatus]int `json:"count_by_status"`
	TotalEstimatedValue decimal.Decimal     `json:"total_estimated_value"`
}

func GetDeltaSummary(ctx context.Context, businessId string, claimId int) (*DeltaSummary, error) {
	deltas, err := GetDeltas(ctx, businessId, claimId, nil)
	if err != nil {
		return nil, err
	}

	summary := &DeltaSummary{
		CountByType:         map[DeltaType]int{},
		CountByStatus:       map[DeltaStatus]int{},
		TotalEstimatedValue: decimal.Zero,
	}
	for _, d := range deltas {
		summary.Total++
		summary.CountByType[d.DeltaType]++
		summary.CountByStatus[d.Status]++
		if d.EstimatedValue != nil {
			summary.TotalEstimatedValue = summary.TotalEstimatedValue.Add(*d.EstimatedValue)
		}
	}
	return summary, nil
}

// CountDeltas is a lifecycle artifact check.
func CountDeltas(ctx context.Context, businessId string, claimId int) (int64, error) {
	return ResourceCountWhere[DeltaItem](ctx, businessId, "claim_id = ?", claimId)
}

// CountApprovedDeltas counts rows a reviewer has approved (or already
// included in a submitted supplement).
func CountApprovedDeltas(ctx context.Context, businessId string, claimId int) (int64, error) {
	return ResourceCountWhere[DeltaItem](ctx, businessId, "claim_id = ? AND status IN ?", claimId,
		[]DeltaStatus{DeltaStatusApproved, DeltaStatusIncluded})
}
