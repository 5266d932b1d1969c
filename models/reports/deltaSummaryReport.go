package reports

import (
	"context"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"github.com/shopspring/decimal"
)

// ClaimDeltaSummary is one row of the delta pipeline report: per-claim
// review progress plus the value still on the table.
type ClaimDeltaSummary struct {
	ClaimId             int             `json:"claimId"`
	ClaimNumber         string          `json:"claimNumber"`
	CarrierName         string          `json:"carrierName"`
	CurrentStage        string          `json:"currentStage"`
	TotalDeltas         int             `json:"totalDeltas"`
	IdentifiedCount     int             `json:"identifiedCount"`
	ApprovedCount       int             `json:"approvedCount"`
	DeniedCount         int             `json:"deniedCount"`
	IncludedCount       int             `json:"includedCount"`
	ApprovedValue       decimal.Decimal `json:"approvedValue"`
	TotalEstimatedValue decimal.Decimal `json:"totalEstimatedValue"`
}

func GetDeltaPipelineReport(ctx context.Context, businessId string) ([]*ClaimDeltaSummary, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	cacheKey := reportCacheKey("delta_pipeline", businessId)
	if reportCacheEnabled() {
		var cached []*ClaimDeltaSummary
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	started := time.Now()
	sql := `
SELECT
    claims.id AS claim_id,
    claims.claim_number,
    claims.carrier_name,
    claims.current_stage,
    COUNT(d.id) AS total_deltas,
    SUM(CASE WHEN d.status = 'identified' THEN 1 ELSE 0 END) AS identified_count,
    SUM(CASE WHEN d.status = 'approved' THEN 1 ELSE 0 END) AS approved_count,
    SUM(CASE WHEN d.status = 'denied' THEN 1 ELSE 0 END) AS denied_count,
    SUM(CASE WHEN d.status = 'included' THEN 1 ELSE 0 END) AS included_count,
    COALESCE(SUM(CASE WHEN d.status IN ('approved', 'included') THEN d.estimated_value ELSE 0 END), 0) AS approved_value,
    COALESCE(SUM(d.estimated_value), 0) AS total_estimated_value
FROM
    claims
    LEFT JOIN delta_items d ON d.claim_id = claims.id AND d.business_id = claims.business_id
WHERE
    claims.business_id = @businessId
GROUP BY
    claims.id, claims.claim_number, claims.carrier_name, claims.current_stage
ORDER BY
    claims.claim_number
`
	var results []*ClaimDeltaSummary
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}
	logSlowReport(ctx, "delta_pipeline", businessId, started)

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, results, reportCacheTTL())
	}
	return results, nil
}

// StageCount is one row of the pipeline-by-stage report.
type StageCount struct {
	Stage      string `json:"stage"`
	ClaimCount int    `json:"claimCount"`
}

func GetClaimStageReport(ctx context.Context, businessId string) ([]*StageCount, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	started := time.Now()
	sql := `
SELECT
    current_stage AS stage,
    COUNT(id) AS claim_count
FROM
    claims
WHERE
    business_id = @businessId
GROUP BY
    current_stage
`
	var results []*StageCount
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}
	logSlowReport(ctx, "claim_stage", businessId, started)
	return results, nil
}
