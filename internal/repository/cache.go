package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/pkg/models"
)

// ContentReader is the subset of content lookups the cache decorates.
type ContentReader interface {
	FindPublished(ctx context.Context, filter models.ContentFilter, excludeIDs []int64, limit int) ([]models.ContentItem, error)
	FindByID(ctx context.Context, id int64) (*models.ContentItem, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.ContentItem, error)
}

// itemCache is the part of the Redis API the content cache needs.
type itemCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedContentRepository puts a Redis read-through cache in front of
// single-item lookups. Cache failures fall back to the underlying store.
//
// Nothing in this service writes content, so a cached item is not evicted when
// its post is unpublished or deleted. The TTL bounds how long such a post can
// still act as a reference.
type CachedContentRepository struct {
	ContentReader
	redis  itemCache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedContentRepository(next ContentReader, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedContentRepository {
	r := &CachedContentRepository{
		ContentReader: next,
		ttl:           ttl,
		logger:        logger,
	}
	if redisClient != nil {
		r.redis = redisClient
	}
	return r
}

func contentCacheKey(id int64) string {
	return fmt.Sprintf("content:item:%d", id)
}

func (r *CachedContentRepository) FindByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	if r.redis == nil || r.ttl <= 0 {
		return r.ContentReader.FindByID(ctx, id)
	}

	key := contentCacheKey(id)
	data, err := r.redis.Get(ctx, key).Result()
	if err == nil {
		var item models.ContentItem
		if err := json.Unmarshal([]byte(data), &item); err == nil {
			r.logger.WithField("content_id", id).Debug("Content cache hit")
			return &item, nil
		}
		r.logger.WithField("content_id", id).Warn("Discarding undecodable cached content")
	} else if !errors.Is(err, redis.Nil) {
		r.logger.WithError(err).Warn("Content cache read failed")
	}

	item, err := r.ContentReader.FindByID(ctx, id)
	if err != nil || item == nil {
		return item, err
	}

	if encoded, err := json.Marshal(item); err == nil {
		if err := r.redis.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
			r.logger.WithError(err).Warn("Content cache write failed")
		}
	}
	return item, nil
}
