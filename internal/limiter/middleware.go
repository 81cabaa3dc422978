package limiter

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/resp"
)

// CartRateLimitMiddleware 购物车写接口的按用户限流中间件。
// 未登录请求放行给后面的认证中间件去拒绝；限流器故障时放行，
// 限流是保护手段而不是业务校验。
func CartRateLimitMiddleware(l Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.Next()
			return
		}

		key := fmt.Sprintf("cart:user:%v", userID)
		result, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
			reqID, _ := c.Get("request_id")
			rid, _ := reqID.(string)
			resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeInvalidParam,
				"请求过于频繁，请稍后重试", rid, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
