package models

import (
	"context"
	"errors"

	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"gorm.io/gorm"
)

// Document is a stored file attachment (carrier scope PDF, defense doc)
// linked polymorphically to its owning record.
type Document struct {
	ID            int    `gorm:"primary_key" json:"id"`
	DocumentUrl   string `json:"document_url"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   int    `json:"reference_id"`
}

type NewDocument struct {
	DocumentUrl string `json:"document_url"`
}

func mapNewDocuments(input []*NewDocument, referenceType string, referenceId int) ([]*Document, error) {
	var documents []*Document
	for _, i := range input {
		d, err := i.MapInput(referenceType, referenceId)
		if err != nil {
			return nil, err
		}
		documents = append(documents, d)
	}
	return documents, nil
}

// for create
func (input NewDocument) MapInput(referenceType string, referenceId int) (*Document, error) {
	if err := utils.CheckObjectExistsInGCS(input.DocumentUrl); err != nil {
		return nil, utils.NewValidationError("document_url", "document does not exist in storage: %v", err)
	}
	return &Document{
		DocumentUrl:   input.DocumentUrl,
		ReferenceType: referenceType,
		ReferenceID:   referenceId,
	}, nil
}

func (d *Document) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&d).Error
}

func (d *Document) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Delete(&d).Error
}

// AttachClaimDocument links an already uploaded object to a claim. The claim
// lookup doubles as the tenant check.
func AttachClaimDocument(tx *gorm.DB, ctx context.Context, businessId string, claimId int, documentUrl string) (*Document, error) {
	var claim Claim
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, claimId).
		First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	input := NewDocument{DocumentUrl: documentUrl}
	doc, err := input.MapInput("claims", claimId)
	if err != nil {
		return nil, err
	}
	if err := doc.Store(tx, ctx); err != nil {
		return nil, err
	}
	return doc, nil
}
