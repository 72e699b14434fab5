package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

// slidingWindowScript prunes entries older than the window and records the
// request only when it fits. Replies {allowed, count}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
	return {0, count}
end

redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, math.ceil(window / 1000))
return {1, count + 1}
`)

// RateLimitService implements a per-client sliding window over a Redis
// sorted set. It fails open when Redis is unavailable or not configured.
type RateLimitService struct {
	config config.RateLimitConfig
	logger *logrus.Logger
	redis  redis.Scripter
	now    func() time.Time
}

func NewRateLimitService(cfg config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	s := &RateLimitService{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	if redisClient != nil {
		s.redis = redisClient
	}
	return s
}

func rateLimitKey(clientKey string) string {
	return "rate_limit:client:" + clientKey
}

// IsAllowed counts the request against clientKey's window. Rejected requests
// are not recorded, so a client regains capacity as its accepted requests age
// out of the window.
func (s *RateLimitService) IsAllowed(ctx context.Context, clientKey string) (bool, *models.RateLimitInfo, error) {
	limit := s.config.Default
	window := s.config.Window
	now := s.now()

	info := &models.RateLimitInfo{
		Limit:     limit,
		Remaining: limit,
		ResetTime: now.Add(window).Unix(),
	}
	if s.redis == nil || !s.config.Enabled {
		return true, info, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	reply, err := slidingWindowScript.Run(ctx, s.redis,
		[]string{rateLimitKey(clientKey)},
		now.UnixMicro(), window.Microseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err == nil && len(reply) != 2 {
		err = fmt.Errorf("unexpected rate limit reply %v", reply)
	}
	if err != nil {
		s.logger.WithError(err).WithField("client", clientKey).Warn("Rate limit check failed, allowing request")
		return true, info, nil
	}

	info.Remaining = max(limit-int(reply[1]), 0)
	return reply[0] == 1, info, nil
}
