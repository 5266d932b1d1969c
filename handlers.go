package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/models/reports"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"bitbucket.org/ridgelinecs/supplements_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// statusForError maps the error taxonomy to HTTP statuses: validation 400,
// not-found 404, conflict 409, upstream 502, everything else 500.
func statusForError(err error) int {
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, utils.ErrorUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// requireBusinessId resolves the tenant for the request and checks the
// session user may act on it. Tenant id travels as an explicit query or
// body field, never as ambient state.
func requireBusinessId(c *gin.Context, businessId string) bool {
	if businessId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
		return false
	}
	if err := authorizeBusiness(c.Request.Context(), businessId); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func claimIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
		return 0, false
	}
	return id, true
}

func createClaimHandler() gin.HandlerFunc {
	type request struct {
		BusinessId string          `json:"business_id"`
		Claim      models.NewClaim `json:"claim"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}

		claim, err := models.CreateClaim(c.Request.Context(), req.BusinessId, &req.Claim)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, claim)
	}
}

func listClaimsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}

		var stage *models.ClaimStage
		if s := c.Query("stage"); s != "" {
			parsed, err := models.ParseClaimStage(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			stage = &parsed
		}

		claims, err := models.GetClaims(c.Request.Context(), businessId, stage)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, claims)
	}
}

func getClaimHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		claim, err := models.GetClaim(c.Request.Context(), businessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, claim)
	}
}

// uploadScopeHandler stores a parsed carrier scope as a new immutable
// version, runs the change-aware ingestion gate over the extracted text, and
// recomputes the claim's lifecycle stage.
func uploadScopeHandler(ingestor *workflow.ScopeIngestor) gin.HandlerFunc {
	type request struct {
		BusinessId string                  `json:"business_id"`
		Scope      models.NewScopeDocument `json:"scope"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		doc, err := models.CreateScopeDocument(ctx, req.BusinessId, claimId, &req.Scope)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ingest, err := ingestor.IngestScope(ctx, req.BusinessId, claimId, req.Scope.ExtractedText)
		if err != nil {
			abortWithError(c, err)
			return
		}

		lifecycle, err := workflow.AdvanceLifecycle(ctx, req.BusinessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"scope_document": doc,
			"ingest":         ingest,
			"lifecycle":      lifecycle,
		})
	}
}

func ingestScopeHandler(ingestor *workflow.ScopeIngestor) gin.HandlerFunc {
	type request struct {
		BusinessId    string `json:"business_id"`
		ExtractedText string `json:"extracted_text"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		result, err := ingestor.IngestScope(c.Request.Context(), req.BusinessId, claimId, req.ExtractedText)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listScopeVersionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		versions, err := models.GetScopeDocumentVersions(c.Request.Context(), businessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, versions)
	}
}

func listPhotoAnalysesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		photos, err := models.GetPhotoAnalyses(c.Request.Context(), businessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, photos)
	}
}

func createPhotoAnalysisHandler() gin.HandlerFunc {
	type request struct {
		BusinessId string                  `json:"business_id"`
		Photo      models.NewPhotoAnalysis `json:"photo"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		analysis, err := models.CreatePhotoAnalysis(c.Request.Context(), req.BusinessId, claimId, &req.Photo)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, analysis)
	}
}

func deletePhotoAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}
		photoId, err := strconv.Atoi(c.Param("photoId"))
		if err != nil || photoId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
			return
		}

		analysis, err := models.DeletePhotoAnalysis(c.Request.Context(), businessId, claimId, photoId)
		if err != nil {
			abortWithError(c, err)
			return
		}

		// Best-effort storage cleanup. The DB row is already gone; an
		// orphaned object is harmless and reported for manual cleanup.
		if objectKey := utils.ExtractObjectKeyFromURL(analysis.PhotoUrl); objectKey != "" {
			if err := utils.DeleteObjectFromGCS(c.Request.Context(), objectKey); err != nil {
				config.LogWarn(config.GetLogger(), "handlers.go", "deletePhotoAnalysisHandler", "utils.DeleteObjectFromGCS "+objectKey, err)
			}
		}
		if analysis.ThumbnailUrl != "" {
			if thumbKey := utils.ExtractObjectKeyFromURL(analysis.ThumbnailUrl); thumbKey != "" {
				if err := utils.DeleteObjectFromGCS(c.Request.Context(), thumbKey); err != nil {
					config.LogWarn(config.GetLogger(), "handlers.go", "deletePhotoAnalysisHandler", "utils.DeleteObjectFromGCS "+thumbKey, err)
				}
			}
		}

		c.Status(http.StatusNoContent)
	}
}

// reconcileDeltasHandler regenerates the delta list, then recomputes the
// lifecycle stage. A best-effort Redis lock narrows the window for two
// overlapping runs; correctness does not depend on it because the merge rule
// only ever replaces rows still in identified.
func reconcileDeltasHandler(justifier workflow.JustificationGenerator) gin.HandlerFunc {
	type request struct {
		BusinessId string `json:"business_id"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		logger := config.GetLogger()

		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil {
			var err error
			lock, err = redisLock.Obtain(ctx, fmt.Sprintf("lock:reconcile:%s:%d", req.BusinessId, claimId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":       "reconcileDeltasHandler",
					"business_id": req.BusinessId,
					"claim_id":    claimId,
				}).Warn("could not obtain redis lock; proceeding without it: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock != nil {
				_ = lock.Release(ctx)
			}
		}()

		deltas, err := workflow.ReconcileDeltas(ctx, req.BusinessId, claimId, justifier)
		if err != nil {
			abortWithError(c, err)
			return
		}

		lifecycle, err := workflow.AdvanceLifecycle(ctx, req.BusinessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"deltas":    deltas,
			"lifecycle": lifecycle,
		})
	}
}

func listDeltasHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		var status *models.DeltaStatus
		if s := c.Query("status"); s != "" {
			parsed, err := models.ParseDeltaStatus(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = &parsed
		}

		deltas, err := models.GetDeltas(c.Request.Context(), businessId, claimId, status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deltas)
	}
}

func deltaSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		summary, err := models.GetDeltaSummary(c.Request.Context(), businessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// updateDeltaStatusHandler applies a reviewer decision and recomputes the
// claim's lifecycle, since approved counts are a lifecycle artifact.
func updateDeltaStatusHandler() gin.HandlerFunc {
	type request struct {
		BusinessId string `json:"business_id"`
		Status     string `json:"status"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		deltaId, err := strconv.Atoi(c.Param("id"))
		if err != nil || deltaId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delta id"})
			return
		}

		ctx := c.Request.Context()
		reviewer, _ := utils.GetUsernameFromContext(ctx)

		delta, err := models.UpdateDeltaStatus(ctx, req.BusinessId, deltaId, models.DeltaStatus(req.Status), reviewer)
		if err != nil {
			abortWithError(c, err)
			return
		}

		lifecycle, err := workflow.AdvanceLifecycle(ctx, req.BusinessId, delta.ClaimId)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"delta":     delta,
			"lifecycle": lifecycle,
		})
	}
}

func advanceLifecycleHandler() gin.HandlerFunc {
	type request struct {
		BusinessId string `json:"business_id"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		result, err := workflow.AdvanceLifecycle(c.Request.Context(), req.BusinessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func operatorTransitionHandler() gin.HandlerFunc {
	type request struct {
		BusinessId string `json:"business_id"`
		Stage      string `json:"stage"`
		Reason     string `json:"reason"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		result, err := workflow.OperatorTransition(c.Request.Context(), req.BusinessId, claimId,
			models.ClaimStage(req.Stage), req.Reason)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// setDefenseDocumentHandler records the generated defense documentation URL
// and recomputes the lifecycle (its presence can unlock supplement_pending).
func setDefenseDocumentHandler() gin.HandlerFunc {
	type request struct {
		BusinessId  string `json:"business_id"`
		DocumentUrl string `json:"document_url"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !requireBusinessId(c, req.BusinessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		if err := models.SetDefenseDocumentUrl(ctx, req.BusinessId, claimId, req.DocumentUrl); err != nil {
			abortWithError(c, err)
			return
		}

		lifecycle, err := workflow.AdvanceLifecycle(ctx, req.BusinessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, lifecycle)
	}
}

func listActivitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}
		claimId, ok := claimIdParam(c)
		if !ok {
			return
		}

		activities, err := models.GetClaimActivities(c.Request.Context(), businessId, claimId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, activities)
	}
}

func deltaPipelineReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}

		rows, err := reports.GetDeltaPipelineReport(c.Request.Context(), businessId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func deltaPipelineReportExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}

		if err := reports.ExportDeltaReportExcel(c.Request.Context(), businessId, c.Writer); err != nil {
			abortWithError(c, err)
			return
		}
	}
}

func claimStageReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if !requireBusinessId(c, businessId) {
			return
		}

		rows, err := reports.GetClaimStageReport(c.Request.Context(), businessId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
