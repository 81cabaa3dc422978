// Package router 组装购物车接口的gin子路由。
// 购物车路由挂载在标准库ServeMux之下，外层中间件链（请求ID、超时等）
// 对这部分路由同样生效。
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/api"
	"github.com/Lucassml-boop/commerce-e/internal/limiter"
	mw "github.com/Lucassml-boop/commerce-e/internal/middleware"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// NewCartRouter 构建购物车路由。
// rateLimiter 和 idempotency 可为 nil，对应能力不启用（依赖Redis）。
func NewCartRouter(
	cartHandler *api.CartHandler,
	jwtService service.JWTService,
	rateLimiter limiter.Limiter,
	idempotency gin.HandlerFunc,
	lg *zap.Logger,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(mw.GinRequestID())
	engine.Use(mw.GinAuth(jwtService, lg))
	if rateLimiter != nil {
		engine.Use(limiter.CartRateLimitMiddleware(rateLimiter, lg))
	}
	if idempotency != nil {
		engine.Use(idempotency)
	}

	cart := engine.Group("/api/v1/cart")
	{
		cart.GET("", cartHandler.GetCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.GET("/count", cartHandler.GetCartCount)
		cart.POST("/items", cartHandler.AddItem)
		cart.PUT("/items/:id", cartHandler.UpdateItem)
		cart.DELETE("/items/:id", cartHandler.RemoveItem)
	}

	return engine
}
