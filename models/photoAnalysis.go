package models

import (
	"context"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
)

// PhotoAnalysis is one structured damage observation derived from an
// uploaded photo. The vision analysis itself is an external collaborator;
// this stores its output.
type PhotoAnalysis struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"size:64;not null;index" json:"business_id"`
	ClaimId      int       `gorm:"not null;index" json:"claim_id"`
	PhotoUrl     string    `gorm:"size:1000;not null" json:"photo_url"`
	ThumbnailUrl string    `gorm:"size:1000" json:"thumbnail_url"`
	DamageType   string    `gorm:"size:100;not null" json:"damage_type"`
	Severity     int       `gorm:"not null;default:1" json:"severity"`
	Description  string    `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (p PhotoAnalysis) GetBusinessId() string {
	return p.BusinessId
}

type NewPhotoAnalysis struct {
	PhotoUrl     string `json:"photo_url" binding:"required"`
	ThumbnailUrl string `json:"thumbnail_url"`
	DamageType   string `json:"damage_type" binding:"required"`
	Severity     int    `json:"severity"`
	Description  string `json:"description"`
}

func (input NewPhotoAnalysis) validate() error {
	if input.PhotoUrl == "" {
		return utils.NewValidationError("photo_url", "photo url is required")
	}
	if input.DamageType == "" {
		return utils.NewValidationError("damage_type", "damage type is required")
	}
	if input.Severity != 0 && (input.Severity < int(DamageSeverityMin) || input.Severity > int(DamageSeverityMax)) {
		return utils.NewValidationError("severity", "severity must be between %d and %d", DamageSeverityMin, DamageSeverityMax)
	}
	return nil
}

func CreatePhotoAnalysis(ctx context.Context, businessId string, claimId int, input *NewPhotoAnalysis) (*PhotoAnalysis, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	if _, err := GetClaim(ctx, businessId, claimId); err != nil {
		return nil, err
	}

	severity := input.Severity
	if severity == 0 {
		severity = int(DamageSeverityMin)
	}

	analysis := PhotoAnalysis{
		BusinessId:   businessId,
		ClaimId:      claimId,
		PhotoUrl:     input.PhotoUrl,
		ThumbnailUrl: input.ThumbnailUrl,
		DamageType:   input.DamageType,
		Severity:     severity,
		Description:  input.Description,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&analysis).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

func GetPhotoAnalyses(ctx context.Context, businessId string, claimId int) ([]*PhotoAnalysis, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	var analyses []*PhotoAnalysis
	err := db.WithContext(ctx).
		Where("business_id = ? AND claim_id = ?", businessId, claimId).
		Order("id ASC").
		Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// GetPhotoAnalysis goes through the generic resource cache: analyses are
// immutable once created, so cached copies never go stale.
func GetPhotoAnalysis(ctx context.Context, businessId string, id int) (*PhotoAnalysis, error) {
	return GetResource[PhotoAnalysis](ctx, businessId, id)
}

// DeletePhotoAnalysis removes an observation, e.g. when a photo was attached
// to the wrong claim. Returns the deleted record so the caller can clean up
// the stored object.
func DeletePhotoAnalysis(ctx context.Context, businessId string, claimId int, id int) (*PhotoAnalysis, error) {
	analysis, err := GetPhotoAnalysis(ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if analysis.ClaimId != claimId {
		return nil, utils.ErrorRecordNotFound
	}

	db := config.GetDB()
	err = db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		Delete(&PhotoAnalysis{}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[PhotoAnalysis](id); err != nil {
		config.LogWarn(config.GetLogger(), "models/photoAnalysis.go", "DeletePhotoAnalysis", "utils.RemoveRedis", err)
	}
	return analysis, nil
}
