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

// Stored extracted text is truncated to this many bytes. The digest used
// for change detection is computed over the full text BEFORE truncation.
const scopeTextStorageLimit = 64 * 1024

// ScopeDocument is one version of the carrier's estimate for a claim.
// Rows are immutable; a re-upload creates version N+1 and leaves prior
// versions untouched so the audit trail of what the carrier said at time T
// is preserved.
type ScopeDocument struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"size:64;not null;index" json:"business_id"`
	ClaimId        int             `gorm:"not null;index;index:uniq_scope_version,unique,priority:1" json:"claim_id"`
	Version        int             `gorm:"not null;index:uniq_scope_version,unique,priority:2" json:"version"`
	ExtractedText  string          `gorm:"type:mediumtext" json:"extracted_text"`
	TextDigest     string          `gorm:"size:64;not null" json:"text_digest"`
	DocumentUrl    string          `gorm:"size:1000" json:"document_url"`
	EstimateNumber string          `gorm:"size:100" json:"estimate_number"`
	AdjusterName   string          `gorm:"size:255" json:"adjuster_name"`
	TotalRCV       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_rcv"`
	TotalACV       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_acv"`
	Depreciation   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"depreciation"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	Deductible     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"deductible"`
	NetPayment     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_payment"`
	TotalSquares   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_squares"`
	PricePerSquare decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_square"`
	LineItems      []ScopeLineItem `json:"line_items"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (s ScopeDocument) GetBusinessId() string {
	return s.BusinessId
}

type ScopeLineItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ScopeDocumentId int             `gorm:"not null;index" json:"scope_document_id"`
	LineNumber      int             `gorm:"not null" json:"line_number"`
	Code            string          `gorm:"size:50;index" json:"code"`
	Description     string          `gorm:"size:500;not null" json:"description"`
	Category        string          `gorm:"size:100" json:"category"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Unit            string          `gorm:"size:20" json:"unit"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	RCV             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rcv"`
	ACV             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"acv"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// NewScopeDocument is the parsed-scope shape handed over by the structured
// extraction collaborator.
type NewScopeDocument struct {
	ExtractedText  string             `json:"extracted_text" binding:"required"`
	DocumentUrl    string             `json:"document_url"`
	EstimateNumber string             `json:"estimate_number"`
	AdjusterName   string             `json:"adjuster_name"`
	TotalRCV       decimal.Decimal    `json:"total_rcv"`
	TotalACV       decimal.Decimal    `json:"total_acv"`
	Depreciation   decimal.Decimal    `json:"depreciation"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	Deductible     decimal.Decimal    `json:"deductible"`
	NetPayment     decimal.Decimal    `json:"net_payment"`
	TotalSquares   decimal.Decimal    `json:"total_squares"`
	LineItems      []NewScopeLineItem `json:"line_items" binding:"required"`
}

type NewScopeLineItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description" binding:"required"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	RCV         decimal.Decimal `json:"rcv"`
	ACV         decimal.Decimal `json:"acv"`
}

func (input NewScopeDocument) validate() error {
	if input.ExtractedText == "" {
		return utils.NewValidationError("extracted_text", "extracted text is required")
	}
	if len(input.LineItems) == 0 {
		return utils.NewValidationError("line_items", "at least one line item is required")
	}
	for i, item := range input.LineItems {
		if item.Description == "" {
			return utils.NewValidationError(fmt.Sprintf("line_items[%d].description", i), "description is required")
		}
		if item.Quantity.IsNegative() {
			return utils.NewValidationError(fmt.Sprintf("line_items[%d].quantity", i), "quantity cannot be negative")
		}
	}
	return nil
}

// CreateScopeDocument stores a new immutable scope version for the claim.
// Version numbering starts at 1 and increments inside the transaction, so
// two concurrent uploads cannot claim the same version (the unique index on
// (claim_id, version) rejects the loser).
func CreateScopeDocument(ctx context.Context, businessId string, claimId int, input *NewScopeDocument) (*ScopeDocument, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	claim, err := GetClaim(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}

	digest := utils.Fingerprint([]byte(input.ExtractedText))
	storedText := input.ExtractedText
	if len(storedText) > scopeTextStorageLimit {
		storedText = storedText[:scopeTextStorageLimit]
	}

	pricePerSquare := decimal.Zero
	if input.TotalSquares.IsPositive() {
		pricePerSquare = input.TotalRCV.DivRound(input.TotalSquares, 4)
	}

	doc := ScopeDocument{
		BusinessId:     businessId,
		ClaimId:        claim.ID,
		ExtractedText:  storedText,
		TextDigest:     digest,
		DocumentUrl:    input.DocumentUrl,
		EstimateNumber: input.EstimateNumber,
		AdjusterName:   input.AdjusterName,
		TotalRCV:       input.TotalRCV,
		TotalACV:       input.TotalACV,
		Depreciation:   input.Depreciation,
		TaxAmount:      input.TaxAmount,
		Deductible:     input.Deductible,
		NetPayment:     input.NetPayment,
		TotalSquares:   input.TotalSquares,
		PricePerSquare: pricePerSquare,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&ScopeDocument{}).
			Where("claim_id = ?", claim.ID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		doc.Version = maxVersion + 1

		for i, item := range input.LineItems {
			doc.LineItems = append(doc.LineItems, ScopeLineItem{
				LineNumber:  i + 1,
				Code:        item.Code,
				Description: item.Description,
				Category:    item.Category,
				Quantity:    item.Quantity,
				Unit:        item.Unit,
				UnitPrice:   item.UnitPrice,
				RCV:         item.RCV,
				ACV:         item.ACV,
			})
		}

		if err := tx.Create(&doc).Error; err != nil {
			return err
		}

		return createClaimActivity(tx, ctx, businessId, claim.ID, ActivityActionScopeUploaded,
			claim.CurrentStage, claim.CurrentStage,
			fmt.Sprintf("Carrier scope version %d stored (%d line items).", doc.Version, len(doc.LineItems)),
			&ActivityDetails{ScopeUploaded: &ScopeUploadedDetails{
				Version:   doc.Version,
				LineItems: len(doc.LineItems),
				TotalRCV:  doc.TotalRCV,
			}})
	})
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// GetLatestScopeDocument returns the highest version for the claim,
// line items preloaded in line order. Reconciliation always works from the
// latest version only, never a mix of versions.
func GetLatestScopeDocument(ctx context.Context, businessId string, claimId int) (*ScopeDocument, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	var doc ScopeDocument
	err := db.WithContext(ctx).
		Where("business_id = ? AND claim_id = ?", businessId, claimId).
		Order("version DESC").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func GetScopeDocumentVersions(ctx context.Context, businessId string, claimId int) ([]*ScopeDocument, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	var docs []*ScopeDocument
	err := db.WithContext(ctx).
		Where("business_id = ? AND claim_id = ?", businessId, claimId).
		Order("version ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ScopeDocumentExists is one of the lifecycle artifact checks.
func ScopeDocumentExists(ctx context.Context, businessId string, claimId int) (bool, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&ScopeDocument{}).
		Where("business_id = ? AND claim_id = ?", businessId, claimId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
