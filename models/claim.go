package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"gorm.io/gorm"
)

type Claim struct {
	ID              int        `gorm:"primary_key" json:"id"`
	BusinessId      string     `gorm:"size:64;not null;index;index:uniq_claim_number,unique,priority:1" json:"business_id"`
	ClaimNumber     string     `gorm:"size:100;not null;index:uniq_claim_number,unique,priority:2" json:"claim_number" binding:"required"`
	InsuredName     string     `gorm:"size:255;not null" json:"insured_name" binding:"required"`
	CarrierName     string     `gorm:"size:255;not null" json:"carrier_name" binding:"required"`
	PropertyAddress string     `gorm:"size:500" json:"property_address"`
	TradeType       TradeType  `gorm:"type:enum('Roofing','Siding','Gutters','Interior');default:Roofing" json:"trade_type"`
	DateOfLoss      *time.Time `gorm:"default:null" json:"date_of_loss"`
	CurrentStage    ClaimStage `gorm:"size:30;not null;default:intake;index" json:"current_stage"`
	// DefenseDocumentUrl is set once supplement defense documentation has
	// been generated; its presence is one of the lifecycle artifacts.
	DefenseDocumentUrl string      `gorm:"size:1000" json:"defense_document_url"`
	Documents          []*Document `gorm:"polymorphic:Reference" json:"documents"`
	CreatedAt          time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Claim) GetBusinessId() string {
	return c.BusinessId
}

type NewClaim struct {
	ClaimNumber     string     `json:"claim_number" binding:"required"`
	InsuredName     string     `json:"insured_name" binding:"required"`
	CarrierName     string     `json:"carrier_name" binding:"required"`
	PropertyAddress string     `json:"property_address"`
	TradeType       TradeType  `json:"trade_type"`
	DateOfLoss      *time.Time `json:"date_of_loss"`
	Documents       []*NewDocument `json:"documents"`
}

func (input NewClaim) validate() error {
	if input.ClaimNumber == "" {
		return utils.NewValidationError("claim_number", "claim number is required")
	}
	if input.TradeType != "" {
		if _, err := ParseTradeType(string(input.TradeType)); err != nil {
			return utils.NewValidationError("trade_type", "%v", err)
		}
	}
	return nil
}

func CreateClaim(ctx context.Context, businessId string, input *NewClaim) (*Claim, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	tradeType := input.TradeType
	if tradeType == "" {
		tradeType = TradeTypeRoofing
	}

	claim := Claim{
		BusinessId:      businessId,
		ClaimNumber:     input.ClaimNumber,
		InsuredName:     input.InsuredName,
		CarrierName:     input.CarrierName,
		PropertyAddress: input.PropertyAddress,
		TradeType:       tradeType,
		DateOfLoss:      input.DateOfLoss,
		CurrentStage:    ClaimStageIntake,
	}

	documents, err := mapNewDocuments(input.Documents, "claims", 0)
	if err != nil {
		return nil, err
	}
	claim.Documents = documents

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Claim{}).
			Where("business_id = ? AND claim_number = ?", businessId, input.ClaimNumber).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.NewValidationError("claim_number", "claim number %q already exists", input.ClaimNumber)
		}
		if err := tx.Create(&claim).Error; err != nil {
			return err
		}
		return createClaimActivity(tx, ctx, businessId, claim.ID, ActivityActionClaimCreated,
			"", ClaimStageIntake, fmt.Sprintf("Claim %s created.", claim.ClaimNumber),
			&ActivityDetails{ClaimCreated: &ClaimCreatedDetails{ClaimNumber: claim.ClaimNumber, CarrierName: claim.CarrierName}})
	})
	if err != nil {
		return nil, err
	}

	return &claim, nil
}

func GetClaim(ctx context.Context, businessId string, claimId int) (*Claim, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	var claim Claim
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, claimId).
		Preload("Documents").
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func GetClaims(ctx context.Context, businessId string, stage *ClaimStage) ([]*Claim, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if stage != nil {
		dbCtx = dbCtx.Where("current_stage = ?", *stage)
	}

	var claims []*Claim
	if err := dbCtx.Order("updated_at DESC").Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// SetDefenseDocumentUrl records generated defense documentation for a claim.
// Called by the upload-complete handler after the defense doc lands in GCS.
func SetDefenseDocumentUrl(ctx context.Context, businessId string, claimId int, url string) error {
	claim, err := GetClaim(ctx, businessId, claimId)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Claim{}).
			Where("business_id = ? AND id = ?", businessId, claimId).
			Update("defense_document_url", url).Error; err != nil {
			return err
		}
		return createClaimActivity(tx, ctx, businessId, claimId, ActivityActionDefenseGenerated,
			claim.CurrentStage, claim.CurrentStage, "Defense documentation generated.",
			&ActivityDetails{DefenseGenerated: &DefenseGeneratedDetails{DocumentUrl: url}})
	})
}
