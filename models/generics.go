package models

import (
	"context"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
)

type Resource interface {
	GetBusinessId() string
}

// GetResource finds by id: first Redis, then DB with an explicit tenant
// filter, caching the DB result. May return ErrorRecordNotFound.
func GetResource[T Resource](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}

	// find in redis
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	// if not found in redis
	if result == nil {
		// fetch from db
		result, err = utils.FetchModel[T](ctx, businessId, id, associations...)
		if err != nil {
			return nil, err
		}

		// store in redis
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	} else {
		// if found in redis, check the tenant before handing it out
		if (*result).GetBusinessId() != businessId {
			return nil, utils.ErrorRecordNotFound
		}
	}

	return result, nil
}

// ResourceCountWhere counts rows for the tenant matching the condition.
func ResourceCountWhere[T any](ctx context.Context, businessId string, cond string, args ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).
		Where("business_id = ?", businessId).
		Where(cond, args...).
		Count(&count).Error
	return count, err
}
