package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/assets"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/middleware"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// UploadHandler 商品图片上传处理器
type UploadHandler struct {
	productService service.ProductService
	store          assets.Store
	logger         *zap.Logger
}

// NewUploadHandler 创建图片上传处理器
func NewUploadHandler(productService service.ProductService, store assets.Store, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		productService: productService,
		store:          store,
		logger:         logger,
	}
}

// UploadProductImage 上传商品图片并回填 image_url
// POST /api/v1/admin/products/{id}/image （multipart 字段名 image）
func (h *UploadHandler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := parseProductID(r.URL.Path)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product id", reqID, "")
		return
	}

	// 表单整体再留1MB余量给字段开销
	if err := r.ParseMultipartForm(assets.MaxImageSize + 1<<20); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid multipart form", reqID, "")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "image field is required", reqID, "")
		return
	}
	defer file.Close()

	path, err := h.store.Save(header.Filename, file)
	if err != nil {
		if assets.IsValidationError(err) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}
		h.logger.Error("save image failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "save image failed", reqID, "")
		return
	}

	product, err := h.productService.UpdateProduct(id, &domain.UpdateProductRequest{ImageURL: &path})
	if err != nil {
		// 回填失败时清掉已落盘的文件，避免产生孤儿图片
		if rmErr := h.store.Remove(path); rmErr != nil {
			h.logger.Warn("orphan image cleanup failed", zap.String("path", path), zap.Error(rmErr))
		}
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
			return
		}
		h.logger.Error("attach image failed", zap.String("request_id", reqID), zap.Int64("product_id", id), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "attach image failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}
