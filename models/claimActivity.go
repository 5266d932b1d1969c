package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClaimActivity is the append-only audit log. Rows are never updated or
// deleted; reporting consumes them via the outbox dispatcher.
type ClaimActivity struct {
	ID            int            `gorm:"primary_key" json:"id"`
	BusinessId    string         `gorm:"size:64;not null;index" json:"business_id"`
	ClaimId       int            `gorm:"not null;index" json:"claim_id"`
	Action        ActivityAction `gorm:"size:30;not null;index" json:"action"`
	PreviousStage ClaimStage     `gorm:"size:30" json:"previous_stage"`
	NewStage      ClaimStage     `gorm:"size:30" json:"new_stage"`
	Reason        string         `gorm:"size:500" json:"reason"`
	ActorName     string         `gorm:"size:100" json:"actor_name"`
	Details       []byte         `gorm:"type:blob" json:"details"`
	CorrelationId string         `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (a ClaimActivity) GetBusinessId() string {
	return a.BusinessId
}

// ActivityDetails is a closed union: exactly one variant pointer is set per
// action kind. Unknown payloads from older writers land in Other untouched,
// so legacy rows keep round-tripping.
type ActivityDetails struct {
	ClaimCreated     *ClaimCreatedDetails     `json:"claim_created,omitempty"`
	ScopeUploaded    *ScopeUploadedDetails    `json:"scope_uploaded,omitempty"`
	ScopeIngested    *ScopeIngestedDetails    `json:"scope_ingested,omitempty"`
	DeltasGenerated  *DeltasGeneratedDetails  `json:"deltas_generated,omitempty"`
	DeltaReviewed    *DeltaReviewedDetails    `json:"delta_reviewed,omitempty"`
	StageAdvanced    *StageAdvancedDetails    `json:"stage_advanced,omitempty"`
	DefenseGenerated *DefenseGeneratedDetails `json:"defense_generated,omitempty"`
	Other            json.RawMessage          `json:"other,omitempty"`
}

type ClaimCreatedDetails struct {
	ClaimNumber string `json:"claim_number"`
	CarrierName string `json:"carrier_name"`
}

type ScopeUploadedDetails struct {
	Version   int             `json:"version"`
	LineItems int             `json:"line_items"`
	TotalRCV  decimal.Decimal `json:"total_rcv"`
}

type ScopeIngestedDetails struct {
	Reindexed  bool   `json:"reindexed"`
	ChunkCount int    `json:"chunk_count"`
	TextDigest string `json:"text_digest"`
}

type DeltasGeneratedDetails struct {
	Generated int `json:"generated"`
	Preserved int `json:"preserved"`
}

type DeltaReviewedDetails struct {
	DeltaExternalId string      `json:"delta_external_id"`
	DeltaType       DeltaType   `json:"delta_type"`
	FromStatus      DeltaStatus `json:"from_status"`
	ToStatus        DeltaStatus `json:"to_status"`
	Reviewer        string      `json:"reviewer"`
}

type StageAdvancedDetails struct {
	Trigger string `json:"trigger"` // "artifact" or "operator"
}

type DefenseGeneratedDetails struct {
	DocumentUrl string `json:"document_url"`
}

// DecodeActivityDetails parses a stored details blob. Payloads that do not
// match any known variant are preserved in Other rather than rejected.
func DecodeActivityDetails(raw []byte) (*ActivityDetails, error) {
	if len(raw) == 0 {
		return &ActivityDetails{}, nil
	}
	var details ActivityDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return &ActivityDetails{Other: json.RawMessage(raw)}, nil
	}
	if details.ClaimCreated == nil && details.ScopeUploaded == nil &&
		details.ScopeIngested == nil && details.DeltasGenerated == nil &&
		details.DeltaReviewed == nil && details.StageAdvanced == nil &&
		details.DefenseGenerated == nil && details.Other == nil {
		details.Other = json.RawMessage(raw)
	}
	return &details, nil
}

// ActivityOutbox implements the transactional outbox: the row is written
// inside the caller's DB transaction, publishing to Pub/Sub happens
// asynchronously in the dispatcher after commit.
type ActivityOutbox struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	ActivityId       int        `gorm:"not null;index" json:"activity_id"`
	BusinessId       string     `gorm:"size:64;not null;index" json:"business_id"`
	ClaimId          int        `gorm:"not null;index" json:"claim_id"`
	Action           string     `gorm:"size:30;not null" json:"action"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// createClaimActivity appends an activity record and its outbox row inside
// the caller's transaction. previousStage/newStage may both be empty for
// non-stage actions.
func createClaimActivity(tx *gorm.DB, ctx context.Context,
	businessId string, claimId int,
	action ActivityAction,
	previousStage ClaimStage, newStage ClaimStage,
	reason string,
	details *ActivityDetails) error {

	var detailsBytes []byte
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsBytes = b
	}

	actor, _ := utils.GetUsernameFromContext(ctx)

	activity := ClaimActivity{
		BusinessId:    businessId,
		ClaimId:       claimId,
		Action:        action,
		PreviousStage: previousStage,
		NewStage:      newStage,
		Reason:        reason,
		ActorName:     actor,
		Details:       detailsBytes,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := tx.Create(&activity).Error; err != nil {
		return err
	}

	outbox := ActivityOutbox{
		ActivityId:    activity.ID,
		BusinessId:    businessId,
		ClaimId:       claimId,
		Action:        string(action),
		Payload:       detailsBytes,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: activity.CorrelationId,
	}
	return tx.Create(&outbox).Error
}

// AppendClaimActivity is the exported entry point for engines that manage
// their own transactions. Same semantics as createClaimActivity.
func AppendClaimActivity(tx *gorm.DB, ctx context.Context,
	businessId string, claimId int,
	action ActivityAction,
	previousStage ClaimStage, newStage ClaimStage,
	reason string,
	details *ActivityDetails) error {
	return createClaimActivity(tx, ctx, businessId, claimId, action, previousStage, newStage, reason, details)
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func GetClaimActivities(ctx context.Context, businessId string, claimId int) ([]*ClaimActivity, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	db := config.GetDB()
	var activities []*ClaimActivity
	err := db.WithContext(ctx).
		Where("business_id = ? AND claim_id = ?", businessId, claimId).
		Order("id ASC").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// ConvertToReportingMessage builds the wire payload for one outbox row.
func ConvertToReportingMessage(record ActivityOutbox, activity ClaimActivity) config.ReportingMessage {
	return config.ReportingMessage{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		ClaimId:       record.ClaimId,
		Action:        record.Action,
		PreviousStage: string(activity.PreviousStage),
		NewStage:      string(activity.NewStage),
		Reason:        activity.Reason,
		OccurredAt:    activity.CreatedAt,
		Details:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
