package workflow

import (
	"context"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
)

// FetchOrCompute is generic memoization over Redis. The cache is an
// optimization, never a correctness dependency: an unconfigured or
// unreachable Redis behaves as a miss, and a failed cache write after a
// successful computation is tolerated (the computation is redone next
// request).
//
// Keys must be built with utils.BuildCacheKey so that every input that
// influences the result is part of the key.
func FetchOrCompute[T any](ctx context.Context, key string, ttl time.Duration, computeFn func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := config.GetRedisObject(key, &cached)
	if err == nil && found {
		return cached, nil
	}
	if err != nil {
		config.LogWarn(config.GetLogger(), "workflow/cacheStore.go", "FetchOrCompute", "config.GetRedisObject "+key, err)
	}

	result, err := computeFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := config.SetRedisObject(key, &result, ttl); err != nil {
		config.LogWarn(config.GetLogger(), "workflow/cacheStore.go", "FetchOrCompute", "config.SetRedisObject "+key, err)
	}
	return result, nil
}
