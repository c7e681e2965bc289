package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"SafeArrival/pkg/errors"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/response"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口
	Window time.Duration
	// 时间窗口内最大请求数
	MaxRequests int
	// 限流键前缀
	KeyPrefix string
}

// ManualSOSRateLimitConfig 紧急按钮限流，连按只会发出有限几条短信
var ManualSOSRateLimitConfig = RateLimitConfig{
	Window:      5 * time.Minute,
	MaxRequests: 3,
	KeyPrefix:   "rate:sos",
}

// RateLimiter 基于 zset 的滑动窗口限流器
type RateLimiter struct {
	config RateLimitConfig
	rdb    goredis.Cmdable
	keyFn  func(parts ...string) string
	now    func() time.Time
}

func NewRateLimiter(config RateLimitConfig, rdb goredis.Cmdable, keyFn func(parts ...string) string) *RateLimiter {
	return &RateLimiter{config: config, rdb: rdb, keyFn: keyFn, now: time.Now}
}

// getKey 有设备 ID 时按设备限流，否则按 IP
func (rl *RateLimiter) getKey(ctx context.Context, c *app.RequestContext) string {
	identifier := "ip:" + c.ClientIP()
	if did, ok := GetDeviceID(ctx, c); ok {
		identifier = "device:" + did
	}
	return rl.keyFn(rl.config.KeyPrefix, identifier)
}

// Allow 返回是否放行以及窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := rl.now()
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.rdb.TxPipeline()

	// 先移除窗口之前的请求记录
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(), // 同一纳秒内的请求也要各占一条
	})
	zcardCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	count := int(zcardCmd.Val())
	return count <= rl.config.MaxRequests, count, nil
}

// RateLimitMiddleware Redis 不可用时放行，紧急请求不能因为限流器故障被拒绝
func RateLimitMiddleware(limiter *RateLimiter) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		allowed, count, err := limiter.Allow(ctx, limiter.getKey(ctx, c))
		if err != nil {
			logger.Logger.Error("Failed to check rate limit, allowing request", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := limiter.config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			logger.Logger.Warn("Request rate limited",
				zap.String("path", string(c.Path())),
				zap.Int("count", count),
			)
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}
