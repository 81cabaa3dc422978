package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/catalog"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/middleware"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// ProductHandler 商品目录相关的HTTP处理器
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler 创建商品处理器实例
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// ListProducts 目录查询
// GET /api/v1/products?search=&category=&min_price=&max_price=&sort=
// 过滤条件之间为 AND 关系，sort 省略时按名称升序
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	criteria, err := h.parseCriteria(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	result, err := h.productService.QueryCatalog(criteria)
	if err != nil {
		h.logger.Error("catalog query failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "query products failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// GetProduct 商品详情
// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := parseProductID(r.URL.Path)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product id", reqID, "")
		return
	}

	product, err := h.productService.GetProduct(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
			return
		}
		h.logger.Error("get product failed", zap.String("request_id", reqID), zap.Int64("product_id", id), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get product failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}

// ListCategories 类目枚举
// GET /api/v1/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	categories, err := h.productService.ListCategories()
	if err != nil {
		h.logger.Error("list categories failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list categories failed", reqID, "")
		return
	}

	data := map[string]any{"categories": categories}
	resp.OK(w, &data, reqID, "")
}

// ListOffers 打折商品列表，折扣力度大的在前
// GET /api/v1/offers
func (h *ProductHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	offers, err := h.productService.ListOffers()
	if err != nil {
		h.logger.Error("list offers failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list offers failed", reqID, "")
		return
	}

	data := map[string]any{"offers": offers}
	resp.OK(w, &data, reqID, "")
}

// CreateProduct 创建商品
// POST /api/v1/admin/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if err := h.validateCreateRequest(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	product, err := h.productService.CreateProduct(&req)
	if err != nil {
		h.logger.Error("create product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create product failed", reqID, "")
		return
	}

	resp.WriteJSON(w, http.StatusCreated, resp.CodeOK, "created", product, reqID, "")
}

// UpdateProduct 更新商品基础字段
// PUT /api/v1/admin/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := parseProductID(r.URL.Path)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product id", reqID, "")
		return
	}

	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.Price != nil && *req.Price <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "price must be positive", reqID, "")
		return
	}
	if req.Stock != nil && *req.Stock < 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "stock must not be negative", reqID, "")
		return
	}

	product, err := h.productService.UpdateProduct(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
			return
		}
		h.logger.Error("update product failed", zap.String("request_id", reqID), zap.Int64("product_id", id), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update product failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}

// DeleteProduct 删除商品
// DELETE /api/v1/admin/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := parseProductID(r.URL.Path)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product id", reqID, "")
		return
	}

	if err := h.productService.DeleteProduct(id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
			return
		}
		h.logger.Error("delete product failed", zap.String("request_id", reqID), zap.Int64("product_id", id), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete product failed", reqID, "")
		return
	}

	data := map[string]any{"deleted": true}
	resp.OK(w, &data, reqID, "")
}

// ApplyOffer 给商品打折
// POST /api/v1/admin/products/{id}/offer
func (h *ProductHandler) ApplyOffer(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := parseProductID(r.URL.Path)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product id", reqID, "")
		return
	}

	var req domain.ApplyOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.ApplyOffer(id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
		case errors.Is(err, domain.ErrInvalidDiscount):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "discount percentage must be in (0, 90]", reqID, "")
		default:
			h.logger.Error("apply offer failed", zap.String("request_id", reqID), zap.Int64("product_id", id), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "apply offer failed", reqID, "")
		}
		return
	}

	resp.OK(w, product, reqID, "")
}

// RemoveOffer 取消打折并恢复原价
// DELETE /api/v1/admin/products/{id}/offer
func (h *ProductHandler) RemoveOffer(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := parseProductID(r.URL.Path)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product id", reqID, "")
		return
	}

	product, err := h.productService.RemoveOffer(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
		case errors.Is(err, domain.ErrNotOnOffer):
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "product is not on offer", reqID, "")
		default:
			h.logger.Error("remove offer failed", zap.String("request_id", reqID), zap.Int64("product_id", id), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "remove offer failed", reqID, "")
		}
		return
	}

	resp.OK(w, product, reqID, "")
}

// parseCriteria 从查询参数构建目录查询条件
func (h *ProductHandler) parseCriteria(r *http.Request) (catalog.Criteria, error) {
	q := r.URL.Query()
	criteria := catalog.Criteria{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
	}

	if v := q.Get("min_price"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil || min < 0 {
			return criteria, errors.New("invalid min_price")
		}
		criteria.MinPrice = &min
	}
	if v := q.Get("max_price"); v != "" {
		max, err := strconv.ParseFloat(v, 64)
		if err != nil || max < 0 {
			return criteria, errors.New("invalid max_price")
		}
		criteria.MaxPrice = &max
	}
	if v := q.Get("sort"); v != "" {
		key := catalog.SortKey(v)
		if !key.IsValid() {
			return criteria, errors.New("invalid sort key")
		}
		criteria.Sort = key
	}

	return criteria, nil
}

// parseProductID 从URL路径中取出商品ID。
// 兼容 /api/v1/products/{id} 和 /api/v1/admin/products/{id}/offer 两种形态。
func parseProductID(path string) (int64, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part == "products" && i+1 < len(parts) {
			id, err := strconv.ParseInt(parts[i+1], 10, 64)
			if err != nil || id <= 0 {
				return 0, errors.New("invalid product id")
			}
			return id, nil
		}
	}
	return 0, errors.New("product id missing")
}

// validateCreateRequest 验证创建商品请求
func (h *ProductHandler) validateCreateRequest(req *domain.CreateProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		return errors.New("category is required")
	}
	if req.Price <= 0 {
		return errors.New("price must be positive")
	}
	if req.Stock < 0 {
		return errors.New("stock must not be negative")
	}
	return nil
}
