package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/resp"
)

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	// 幂等键请求头名称
	IdempotencyKeyHeader string

	// 跳过的HTTP方法
	SkipMethods []string

	// 幂等键的占用时长
	CacheTTL time.Duration

	// Redis键前缀
	KeyPrefix string
}

// DefaultIdempotencyConfig 默认幂等性配置
func DefaultIdempotencyConfig() *IdempotencyConfig {
	return &IdempotencyConfig{
		IdempotencyKeyHeader: "X-Idempotency-Key",
		SkipMethods:          []string{"GET", "HEAD", "OPTIONS"},
		CacheTTL:             24 * time.Hour,
		KeyPrefix:            "idem:cart",
	}
}

// IdempotencyStore 是幂等键的存储，*redis.Client 天然满足
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// GinIdempotency 购物车写接口的幂等性中间件。
// 客户端在 X-Idempotency-Key 头中携带幂等键时，同一用户对同一键的
// 重复提交会被拒绝；未携带幂等键的请求不做检查。
// Redis不可用时放行请求，幂等性退化为尽力而为。
func GinIdempotency(client IdempotencyStore, config *IdempotencyConfig, logger *zap.Logger) gin.HandlerFunc {
	if config == nil {
		config = DefaultIdempotencyConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		for _, skip := range config.SkipMethods {
			if method == skip {
				c.Next()
				return
			}
		}

		idempotencyKey := c.GetHeader(config.IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		userID, _ := c.Get("user_id")
		redisKey := fmt.Sprintf("%s:%v:%s", config.KeyPrefix, userID, idempotencyKey)

		ok, err := client.SetNX(c.Request.Context(), redisKey, 1, config.CacheTTL).Result()
		if err != nil {
			logger.Warn("idempotency check failed, allowing request",
				zap.String("key", redisKey), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			resp.Error(c.Writer, http.StatusConflict, resp.CodeConflict,
				"重复请求", ginRequestID(c), ginTraceID(c))
			c.Abort()
			return
		}

		c.Set("idempotency_key", idempotencyKey)
		c.Next()
	}
}

// ginRequestID 从gin上下文获取请求ID
func ginRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// ginTraceID 从gin上下文获取追踪ID
func ginTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}
