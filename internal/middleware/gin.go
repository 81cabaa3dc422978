package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// GinRequestID 把外层 net/http 中间件注入的链路标识带进 gin 上下文。
// gin 子路由挂载在主 mux 之下，请求 ID 与追踪 ID 已经在标准上下文里。
func GinRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rid := RequestIDFromContext(c.Request.Context()); rid != "" {
			c.Set("request_id", rid)
		}
		if tid := TraceIDFromContext(c.Request.Context()); tid != "" {
			c.Set("trace_id", tid)
		}
		c.Next()
	}
}

// GinAuth gin 版本的JWT认证中间件。
// 验证通过后把 user_id 和 user_role 写入 gin 上下文供处理器读取。
func GinAuth(jwtService service.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := RequestIDFromContext(c.Request.Context())
		traceID := TraceIDFromContext(c.Request.Context())

		token := bearerToken(c.Request)
		if token == "" {
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
				"bearer token required", reqID, traceID)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			logger.Warn("token validation failed",
				zap.String("request_id", reqID), zap.Error(err))
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
				tokenErrorMessage(err), reqID, traceID)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", string(claims.Role))
		c.Next()
	}
}
