package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

const contextKeyUser contextKey = "user"

const bearerPrefix = "Bearer "

// bearerToken 从 Authorization 头中取出 Bearer 令牌。
// 头缺失、前缀不对或令牌为空时返回空串。
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
}

// userFromClaims 由令牌声明构建上下文用户。
// 令牌有效即视为账号活跃，封禁在签发侧保证。
func userFromClaims(claims *service.Claims) *domain.User {
	return &domain.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		IsActive: true,
	}
}

// tokenErrorMessage 将令牌校验错误映射为对外提示。
func tokenErrorMessage(err error) string {
	switch err {
	case service.ErrTokenExpired:
		return "token expired"
	case service.ErrTokenNotReady:
		return "token not ready"
	default:
		return "invalid token"
	}
}

// AuthMiddleware 校验 Bearer 令牌并把用户注入请求上下文。
// 校验失败一律返回 401，业务码为 CodeUnauthorized。
func AuthMiddleware(jwtService service.JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())
			traceID := TraceIDFromContext(r.Context())

			token := bearerToken(r)
			if token == "" {
				logger.Warn("missing or malformed bearer token", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "bearer token required", reqID, traceID)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				logger.Warn("token validation failed",
					zap.String("request_id", reqID),
					zap.Error(err),
				)
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, tokenErrorMessage(err), reqID, traceID)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUser, userFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole 要求上下文用户具备指定角色，须串联在 AuthMiddleware 之后。
func RequireRole(requiredRole domain.UserRole, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())
			traceID := TraceIDFromContext(r.Context())

			user := UserFromContext(r.Context())
			if user == nil {
				// 只有中间件顺序装错时才会走到这里
				logger.Error("user not found in context", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, traceID)
				return
			}

			if user.Role != requiredRole {
				logger.Warn("insufficient permissions",
					zap.String("request_id", reqID),
					zap.Int64("user_id", user.ID),
					zap.String("user_role", string(user.Role)),
					zap.String("required_role", string(requiredRole)),
				)
				resp.Error(w, http.StatusForbidden, resp.CodeUnauthorized, "insufficient permissions", reqID, traceID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin 是 RequireRole(管理员) 的便捷包装。
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(domain.UserRoleAdmin, logger)
}

// UserFromContext 取出当前登录用户，未认证时返回 nil。
func UserFromContext(ctx context.Context) *domain.User {
	if user, ok := ctx.Value(contextKeyUser).(*domain.User); ok {
		return user
	}
	return nil
}

// OptionalAuth 尽力识别用户：令牌有效则注入上下文，缺失或无效则匿名放行。
// 适用于既支持匿名又支持登录态的端点。
func OptionalAuth(jwtService service.JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				logger.Debug("optional auth token validation failed",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUser, userFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
