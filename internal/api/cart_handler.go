// 购物车走 gin 路由：这是前端交互最频繁的接口组，
// 复用绑定校验、中间件生态和限流能力。
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/cart"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// CartHandler 购物车API处理器
type CartHandler struct {
	cartService service.CartService
	hub         *cart.Hub
	logger      *zap.Logger
}

// NewCartHandler 创建购物车API处理器
func NewCartHandler(cartService service.CartService, hub *cart.Hub, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		cartService: cartService,
		hub:         hub,
		logger:      logger,
	}
}

// GetCart 获取购物车内容
// GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID := h.getCurrentUserID(c)
	if userID == 0 {
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
			"用户未登录", h.getRequestID(c), h.getTraceID(c))
		return
	}

	result, err := h.cartService.GetCart(userID)
	if err != nil {
		h.logger.Error("获取购物车失败", zap.Int64("user_id", userID), zap.Error(err))
		resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError,
			"获取购物车失败", h.getRequestID(c), h.getTraceID(c))
		return
	}

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success", result,
		h.getRequestID(c), h.getTraceID(c))
}

// GetCartCount 获取购物车角标计数。
// 计数由计数器中心维护，购物车变更（本地或其他实例）会触发整体重算，
// 这里只在计数器尚未就绪时补一次重算。
// GET /api/v1/cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	userID := h.getCurrentUserID(c)
	if userID == 0 {
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
			"用户未登录", h.getRequestID(c), h.getTraceID(c))
		return
	}

	counter := h.hub.Counter(c.Request.Context(), userID)
	state, count := counter.Snapshot()
	if state != cart.StateReady {
		if err := counter.Refresh(c.Request.Context()); err != nil {
			h.logger.Error("获取购物车计数失败", zap.Int64("user_id", userID), zap.Error(err))
			resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError,
				"获取购物车计数失败", h.getRequestID(c), h.getTraceID(c))
			return
		}
		state, count = counter.Snapshot()
	}

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success",
		&domain.CartCountResponse{Count: count, State: state.String()}, h.getRequestID(c), h.getTraceID(c))
}

// AddItem 加入购物车，同一商品合并到已有行
// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID := h.getCurrentUserID(c)
	if userID == 0 {
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
			"用户未登录", h.getRequestID(c), h.getTraceID(c))
		return
	}

	var req domain.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("参数绑定失败", zap.Error(err))
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
			"请求参数格式错误", h.getRequestID(c), h.getTraceID(c))
		return
	}

	item, err := h.cartService.AddItem(userID, &req)
	if err != nil {
		h.writeCartError(c, err, "加入购物车失败")
		return
	}

	h.logger.Info("商品加入购物车",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", req.ProductID),
		zap.Int64("quantity", item.Quantity))

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success", item,
		h.getRequestID(c), h.getTraceID(c))
}

// UpdateItem 修改购物车行数量
// PUT /api/v1/cart/items/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID := h.getCurrentUserID(c)
	if userID == 0 {
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
			"用户未登录", h.getRequestID(c), h.getTraceID(c))
		return
	}

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || itemID <= 0 {
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
			"无效的购物车行ID", h.getRequestID(c), h.getTraceID(c))
		return
	}

	var req domain.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
			"请求参数格式错误", h.getRequestID(c), h.getTraceID(c))
		return
	}

	item, err := h.cartService.UpdateItemQuantity(userID, itemID, &req)
	if err != nil {
		h.writeCartError(c, err, "修改数量失败")
		return
	}

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success", item,
		h.getRequestID(c), h.getTraceID(c))
}

// RemoveItem 删除购物车行，重复删除同样返回成功
// DELETE /api/v1/cart/items/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID := h.getCurrentUserID(c)
	if userID == 0 {
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
			"用户未登录", h.getRequestID(c), h.getTraceID(c))
		return
	}

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || itemID <= 0 {
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
			"无效的购物车行ID", h.getRequestID(c), h.getTraceID(c))
		return
	}

	if err := h.cartService.RemoveItem(userID, itemID); err != nil {
		h.writeCartError(c, err, "删除失败")
		return
	}

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success",
		map[string]any{"removed": true}, h.getRequestID(c), h.getTraceID(c))
}

// ClearCart 清空购物车
// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID := h.getCurrentUserID(c)
	if userID == 0 {
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized,
			"用户未登录", h.getRequestID(c), h.getTraceID(c))
		return
	}

	if err := h.cartService.ClearCart(userID); err != nil {
		h.logger.Error("清空购物车失败", zap.Int64("user_id", userID), zap.Error(err))
		resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError,
			"清空购物车失败", h.getRequestID(c), h.getTraceID(c))
		return
	}

	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "success",
		map[string]any{"cleared": true}, h.getRequestID(c), h.getTraceID(c))
}

// writeCartError 把购物车业务错误映射为HTTP响应
func (h *CartHandler) writeCartError(c *gin.Context, err error, fallback string) {
	reqID, traceID := h.getRequestID(c), h.getTraceID(c)
	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		resp.Error(c.Writer, http.StatusConflict, resp.CodeStockExceeded, "库存不足", reqID, traceID)
	case errors.Is(err, cart.ErrInvalidQuantity):
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, "数量超出允许范围", reqID, traceID)
	case errors.Is(err, cart.ErrLineNotFound):
		resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "购物车行不存在", reqID, traceID)
	case errors.Is(err, cart.ErrProductNotFound):
		resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "商品不存在", reqID, traceID)
	default:
		h.logger.Error(fallback, zap.Error(err))
		resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError, fallback, reqID, traceID)
	}
}

// getCurrentUserID 从上下文获取当前用户ID
func (h *CartHandler) getCurrentUserID(c *gin.Context) int64 {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(int64); ok {
			return id
		}
	}
	return 0
}

// getRequestID 获取请求ID
func (h *CartHandler) getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getTraceID 获取追踪ID
func (h *CartHandler) getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}
