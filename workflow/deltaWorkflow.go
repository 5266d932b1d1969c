package workflow

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CandidateDelta is one discrepancy decided by the engine before
// persistence and prose generation.
type CandidateDelta struct {
	DeltaType       models.DeltaType
	ItemCode        string
	ItemDescription string
	Facts           JustificationFacts
	PhotoAnalysisId *int
	Quantity        *decimal.Decimal
	Unit            string
	EstimatedValue  *decimal.Decimal
}

// ComputeCandidateDeltas reconciles the latest carrier line items against
// the required-items table and photo observations. Pure; no persistence.
// Inputs always come from a single scope version, never a mix.
func ComputeCandidateDeltas(trade models.TradeType, totalSquares decimal.Decimal,
	lineItems []models.ScopeLineItem, photos []*models.PhotoAnalysis) []CandidateDelta {

	var candidates []CandidateDelta
	seen := map[string]bool{}

	// Code-required items the carrier omitted or shorted.
	for _, required := range RequiredItemsForTrade(trade) {
		var matched *models.ScopeLineItem
		for i := range lineItems {
			if required.matchesLineItem(lineItems[i]) {
				matched = &lineItems[i]
				break
			}
		}

		if matched == nil {
			key := string(models.DeltaTypeMissing) + "|" + required.Code
			if seen[key] {
				continue
			}
			seen[key] = true

			qty := expectedQuantity(required, totalSquares)
			var estimate *decimal.Decimal
			if qty != nil && required.TypicalUnitValue.IsPositive() {
				v := qty.Mul(required.TypicalUnitValue).Round(2)
				estimate = &v
			}
			candidates = append(candidates, CandidateDelta{
				DeltaType:       models.DeltaTypeMissing,
				ItemCode:        required.Code,
				ItemDescription: required.Description,
				Quantity:        qty,
				Unit:            required.Unit,
				EstimatedValue:  estimate,
				Facts: JustificationFacts{
					DeltaType:       models.DeltaTypeMissing,
					ItemDescription: required.Description,
					CodeCitation:    required.CodeCitation,
				},
			})
			continue
		}

		// Present but implausibly low against the measured squares.
		if required.MinQtyPerSquare.IsPositive() && totalSquares.IsPositive() {
			floor := required.MinQtyPerSquare.Mul(totalSquares)
			if matched.Quantity.LessThan(floor) {
				key := string(models.DeltaTypeUnderscoped) + "|" + required.Code
				if seen[key] {
					continue
				}
				seen[key] = true

				shortfall := floor.Sub(matched.Quantity)
				var estimate *decimal.Decimal
				if required.TypicalUnitValue.IsPositive() {
					v := shortfall.Mul(required.TypicalUnitValue).Round(2)
					estimate = &v
				}
				candidates = append(candidates, CandidateDelta{
					DeltaType:       models.DeltaTypeUnderscoped,
					ItemCode:        required.Code,
					ItemDescription: required.Description,
					Quantity:        &shortfall,
					Unit:            required.Unit,
					EstimatedValue:  estimate,
					Facts: JustificationFacts{
						DeltaType:       models.DeltaTypeUnderscoped,
						ItemDescription: required.Description,
						CodeCitation:    required.CodeCitation,
						CarrierQty:      fmt.Sprintf("%s %s", matched.Quantity.String(), required.Unit),
						ExpectedQty:     fmt.Sprintf("%s %s", floor.String(), required.Unit),
					},
				})
			}
		}
	}

	// Photo-documented damage no carrier line reflects.
	for _, photo := range photos {
		if photoReflectedInScope(photo, lineItems) {
			continue
		}
		key := string(models.DeltaTypeRecommendAdd) + "|photo|" + strings.ToLower(photo.DamageType)
		if seen[key] {
			continue
		}
		seen[key] = true

		photoId := photo.ID
		description := fmt.Sprintf("Repair for %s damage", strings.ToLower(photo.DamageType))
		candidates = append(candidates, CandidateDelta{
			DeltaType:       models.DeltaTypeRecommendAdd,
			ItemDescription: description,
			PhotoAnalysisId: &photoId,
			Facts: JustificationFacts{
				DeltaType:       models.DeltaTypeRecommendAdd,
				ItemDescription: description,
				EvidenceSummary: photoEvidenceSummary(photo),
			},
		})
	}

	return candidates
}

func expectedQuantity(required RequiredItem, totalSquares decimal.Decimal) *decimal.Decimal {
	if required.MinQtyPerSquare.IsPositive() && totalSquares.IsPositive() {
		qty := required.MinQtyPerSquare.Mul(totalSquares)
		return &qty
	}
	return nil
}

func photoReflectedInScope(photo *models.PhotoAnalysis, lineItems []models.ScopeLineItem) bool {
	damage := strings.ToLower(photo.DamageType)
	for _, item := range lineItems {
		text := strings.ToLower(item.Description + " " + item.Category)
		if strings.Contains(text, damage) {
			return true
		}
	}
	return false
}

func photoEvidenceSummary(photo *models.PhotoAnalysis) string {
	summary := fmt.Sprintf("photo shows %s damage (severity %d/5)", strings.ToLower(photo.DamageType), photo.Severity)
	if photo.Description != "" {
		summary += ": " + photo.Description
	}
	return summary
}

// deltaIdentity keys a delta by what it claims rather than by surrogate id:
// type + item code for scope deltas, type + derived description for photo
// deltas. Two rows with the same identity describe the same discrepancy.
func deltaIdentity(deltaType models.DeltaType, itemCode string, itemDescription string) string {
	return string(deltaType) + "|" + itemCode + "|" + strings.ToLower(itemDescription)
}

// FilterReviewedDuplicates drops regenerated deltas that restate a
// discrepancy a reviewer has already decided on. Without this every re-run
// would resurrect each approved or denied delta as a new identified row.
func FilterReviewedDuplicates(fresh []*models.DeltaItem, reviewed []*models.DeltaItem) []*models.DeltaItem {
	if len(reviewed) == 0 {
		return fresh
	}
	decided := make(map[string]bool, len(reviewed))
	for _, d := range reviewed {
		decided[deltaIdentity(d.DeltaType, d.ItemCode, d.ItemDescription)] = true
	}
	kept := make([]*models.DeltaItem, 0, len(fresh))
	for _, d := range fresh {
		if decided[deltaIdentity(d.DeltaType, d.ItemCode, d.ItemDescription)] {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// ReconcileDeltas regenerates the claim's delta list from the latest scope
// version and photo analyses, then merges with recorded review decisions:
// rows still in identified are replaced wholesale; approved/denied/included
// rows are human decisions and are never deleted or overwritten. Running
// twice with identical inputs yields the same set (new surrogate ids only),
// so the operation is safe to repeat.
func ReconcileDeltas(ctx context.Context, businessId string, claimId int, justifier JustificationGenerator) ([]*models.DeltaItem, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	claim, err := models.GetClaim(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}
	scope, err := models.GetLatestScopeDocument(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}
	photos, err := models.GetPhotoAnalyses(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}

	candidates := ComputeCandidateDeltas(claim.TradeType, scope.TotalSquares, scope.LineItems, photos)

	if justifier == nil {
		justifier = TemplateJustifier{}
	}

	fresh := make([]*models.DeltaItem, 0, len(candidates))
	for _, c := range candidates {
		justification, genErr := justifier.Generate(ctx, c.Facts)
		if genErr != nil {
			// Prose generation is best-effort; the structural delta ships
			// with the deterministic template instead.
			config.LogWarn(config.GetLogger(), "workflow/deltaWorkflow.go", "ReconcileDeltas", "justifier.Generate", genErr)
			justification = RenderJustificationTemplate(c.Facts)
		}

		fresh = append(fresh, &models.DeltaItem{
			ExternalId:      uuid.NewString(),
			BusinessId:      businessId,
			ClaimId:         claimId,
			DeltaType:       c.DeltaType,
			Status:          models.DeltaStatusIdentified,
			CodeCitation:    c.Facts.CodeCitation,
			EvidenceSummary: c.Facts.EvidenceSummary,
			Justification:   justification,
			PhotoAnalysisId: c.PhotoAnalysisId,
			ItemCode:        c.ItemCode,
			ItemDescription: c.ItemDescription,
			Quantity:        c.Quantity,
			Unit:            c.Unit,
			EstimatedValue:  c.EstimatedValue,
		})
	}

	var inserted []*models.DeltaItem
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The Redis lock upstream is best-effort only; the advisory lock is
		// what actually serializes concurrent merges for a claim.
		if err := AcquireClaimReconcileLock(tx, businessId, claimId); err != nil {
			return err
		}
		defer ReleaseClaimReconcileLock(tx, businessId, claimId)

		// Reviewed rows survive; drop only untouched identified rows.
		if err := tx.
			Where("business_id = ? AND claim_id = ? AND status = ?", businessId, claimId, models.DeltaStatusIdentified).
			Delete(&models.DeltaItem{}).Error; err != nil {
			return err
		}

		var reviewed []*models.DeltaItem
		if err := tx.
			Where("business_id = ? AND claim_id = ?", businessId, claimId).
			Find(&reviewed).Error; err != nil {
			return err
		}

		// A discrepancy the reviewer already decided on must not come back
		// as a second identified row.
		inserted = FilterReviewedDuplicates(fresh, reviewed)
		for _, delta := range inserted {
			if err := tx.Create(delta).Error; err != nil {
				return err
			}
		}

		return models.AppendClaimActivity(tx, ctx, businessId, claimId, models.ActivityActionDeltasGenerated,
			"", "", fmt.Sprintf("Reconciliation generated %d deltas, preserved %d reviewed.", len(inserted), len(reviewed)),
			&models.ActivityDetails{DeltasGenerated: &models.DeltasGeneratedDetails{
				Generated: len(inserted),
				Preserved: len(reviewed),
			}})
	})
	if err != nil {
		return nil, err
	}

	return inserted, nil
}
