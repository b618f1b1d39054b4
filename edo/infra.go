package edo

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

const (
	catalogCacheKey = "edo:catalog"
	lockTTL         = 30 * time.Second
	signedURLTTL    = 15 * time.Minute
)

// RedisLocker takes best-effort locks through redislock. When Redis is not connected or the
// lock is held elsewhere the caller proceeds without it.
type RedisLocker struct{}

func (RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		logger.WithField("lock_key", key).Warn("redis lock not ready; proceeding without redis lock")
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, key, lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.WithField("lock_key", key).Warn("could not obtain redis lock; proceeding without redis lock")
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return func() {
		// The request context may already be done; release on a fresh one.
		if releaseErr := lock.Release(context.Background()); releaseErr != nil {
			logger.WithField("lock_key", key).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}, nil
}

// RedisCatalogCache keeps the product catalog under edo:catalog.
type RedisCatalogCache struct {
	TTL time.Duration
}

func (c RedisCatalogCache) Get(ctx context.Context) ([]Product, bool) {
	var products []Product
	found, err := config.GetRedisObject(ctx, catalogCacheKey, &products)
	if err != nil {
		config.LogWarn(config.GetLogger(), moduleName, "RedisCatalogCache.Get", catalogCacheKey, nil, err)
		return nil, false
	}
	return products, found
}

func (c RedisCatalogCache) Put(ctx context.Context, products []Product) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = config.EdoCatalogCacheTTL()
	}
	if err := config.SetRedisObject(ctx, catalogCacheKey, products, ttl); err != nil {
		config.LogWarn(config.GetLogger(), moduleName, "RedisCatalogCache.Put", catalogCacheKey, nil, err)
	}
}

func (c RedisCatalogCache) Invalidate(ctx context.Context) {
	if err := config.RemoveRedisKey(ctx, catalogCacheKey); err != nil {
		config.LogWarn(config.GetLogger(), moduleName, "RedisCatalogCache.Invalidate", catalogCacheKey, nil, err)
	}
}

// GCSArchive stores artifacts in the GCS_BUCKET bucket and links them with V4 signed URLs.
type GCSArchive struct{}

func (GCSArchive) Put(ctx context.Context, objectName, contentType string, data []byte) error {
	return utils.SaveBytesToGCS(ctx, objectName, contentType, data)
}

func (GCSArchive) URL(ctx context.Context, objectName string) (string, error) {
	return utils.SignedDownloadURL(ctx, objectName, signedURLTTL)
}
