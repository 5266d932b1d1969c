package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"bitbucket.org/ridgelinecs/supplements_backend/workflow"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Upload flow: the client asks for a signed PUT URL, uploads directly to GCS,
// then calls complete. Photos get a thumbnail; scope and defense documents
// get attached to the claim.

type uploadContext struct {
	Kind    string `json:"kind"` // "photo", "scope_document", "defense_document"
	ClaimID int    `json:"claimId"`
}

type uploadSignRequest struct {
	BusinessId string        `json:"business_id"`
	FileName   string        `json:"fileName"`
	MimeType   string        `json:"mimeType"`
	Size       int64         `json:"size"`
	Context    uploadContext `json:"context"`
}

type uploadCompleteRequest struct {
	BusinessId string        `json:"business_id"`
	ObjectKey  string        `json:"objectKey"`
	MimeType   string        `json:"mimeType"`
	Context    uploadContext `json:"context"`
}

type uploadSignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt string            `json:"expiresAt"`
}

type uploadCompleteResponse struct {
	ImageURL           string          `json:"imageUrl,omitempty"`
	ThumbnailURL       string          `json:"thumbnailUrl,omitempty"`
	ObjectKey          string          `json:"objectKey"`
	ThumbnailObjectKey string          `json:"thumbnailObjectKey,omitempty"`
	Document           *uploadDocument `json:"document,omitempty"`
}

type uploadDocument struct {
	ID          int    `json:"id"`
	DocumentURL string `json:"documentUrl"`
}

const maxUploadSizeBytes int64 = 20 * 1024 * 1024

var photoMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var documentMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

func uploadKindSegment(kind string) string {
	switch kind {
	case "photo":
		return "photos"
	case "scope_document":
		return "scopes"
	case "defense_document":
		return "defense"
	default:
		return ""
	}
}

func signUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		if req.FileName == "" || req.MimeType == "" || req.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fileName, mimeType and size are required"})
			return
		}
		if req.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 20MB limit"})
			return
		}

		segment := uploadKindSegment(req.Context.Kind)
		if segment == "" || req.Context.ClaimID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "context.kind and context.claimId are required"})
			return
		}

		if req.Context.Kind == "photo" {
			if !photoMimeTypes[req.MimeType] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
				return
			}
		} else if !documentMimeTypes[req.MimeType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}

		ext := strings.ToLower(filepath.Ext(req.FileName))
		if ext == "" {
			ext = extensionFromMimeType(req.MimeType)
		}
		if ext == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file extension is required"})
			return
		}

		objectKey := path.Join(req.BusinessId, "claims", fmt.Sprintf("%d", req.Context.ClaimID), segment, uuid.New().String()+ext)

		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
		if err != nil {
			config.LogError(logger, "uploads.go", "signUploadHandler", "SignUpload", objectKey, err)
			message := "failed to sign upload"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to sign upload: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": message})
			return
		}

		logger.WithFields(logrus.Fields{
			"business_id": req.BusinessId,
			"claim_id":    req.Context.ClaimID,
			"kind":        req.Context.Kind,
			"mime_type":   req.MimeType,
			"size":        req.Size,
			"object_key":  objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, gin.H{
			"data": uploadSignResponse{
				UploadURL: signed.UploadURL,
				Method:    signed.Method,
				Headers:   signed.Headers,
				ObjectKey: signed.ObjectKey,
				AccessURL: signed.AccessURL,
				ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
			},
		})
	}
}

func completeUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req uploadCompleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		if req.ObjectKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "objectKey is required"})
			return
		}
		if !strings.HasPrefix(req.ObjectKey, req.BusinessId+"/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object key"})
			return
		}
		if req.Context.ClaimID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "context.claimId is required"})
			return
		}

		ctx := c.Request.Context()
		response := uploadCompleteResponse{
			ObjectKey: req.ObjectKey,
		}

		switch req.Context.Kind {
		case "photo":
			thumbnailKey, err := createThumbnail(ctx, req.ObjectKey)
			if err != nil {
				config.LogError(logger, "uploads.go", "completeUploadHandler", "createThumbnail", req.ObjectKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate thumbnail"})
				return
			}
			response.ImageURL = utils.BuildObjectAccessURL(req.ObjectKey)
			response.ThumbnailURL = utils.BuildObjectAccessURL(thumbnailKey)
			response.ThumbnailObjectKey = thumbnailKey

		case "defense_document":
			documentURL := utils.BuildObjectAccessURL(req.ObjectKey)
			if err := models.SetDefenseDocumentUrl(ctx, req.BusinessId, req.Context.ClaimID, documentURL); err != nil {
				abortWithError(c, err)
				return
			}
			if _, err := workflow.AdvanceLifecycle(ctx, req.BusinessId, req.Context.ClaimID); err != nil {
				abortWithError(c, err)
				return
			}
			response.Document = &uploadDocument{DocumentURL: documentURL}

		case "scope_document":
			documentURL := utils.BuildObjectAccessURL(req.ObjectKey)
			doc, err := attachDocumentOnce(ctx, req.BusinessId, req.Context.ClaimID, req.ObjectKey, documentURL)
			if err != nil {
				if errors.Is(err, workflow.ErrIdempotencyInProgress) {
					c.JSON(http.StatusConflict, gin.H{"error": "upload completion already in progress"})
					return
				}
				abortWithError(c, err)
				return
			}
			if doc != nil {
				response.Document = &uploadDocument{ID: doc.ID, DocumentURL: doc.DocumentUrl}
			} else {
				response.Document = &uploadDocument{DocumentURL: documentURL}
			}

		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported context.kind"})
			return
		}

		logger.WithFields(logrus.Fields{
			"business_id": req.BusinessId,
			"claim_id":    req.Context.ClaimID,
			"object_key":  req.ObjectKey,
			"status":      "completed",
		}).Info("[upload.complete]")

		c.JSON(http.StatusOK, gin.H{"data": response})
	}
}

// attachDocumentOnce links the uploaded object to its claim exactly once.
// Repeated completes for the same object key (client retries, double taps)
// are absorbed by the idempotency table.
func attachDocumentOnce(ctx context.Context, businessId string, claimId int, objectKey, documentURL string) (*models.Document, error) {
	db := config.GetDB()
	var doc *models.Document
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := workflow.BeginIdempotency(tx, businessId, "upload.complete", objectKey)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		doc, err = models.AttachClaimDocument(tx, ctx, businessId, claimId, documentURL)
		if err != nil {
			_ = workflow.MarkIdempotencyFailed(tx, businessId, "upload.complete", objectKey, err)
			return err
		}
		return workflow.MarkIdempotencySucceeded(tx, businessId, "upload.complete", objectKey)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func createThumbnail(ctx context.Context, objectKey string) (string, error) {
	client, err := utils.GetGCSClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	reader, err := client.Bucket(bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxUploadSizeBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return "", errors.New("file size exceeds 20MB limit")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	default:
		return ""
	}
}
