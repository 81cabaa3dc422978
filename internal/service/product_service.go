package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/catalog"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/repo"
)

// 商品相关业务错误
var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductService 定义商品服务接口。
// 目录查询基于全量快照在内存中完成，写操作直通仓储。
type ProductService interface {
	CreateProduct(req *domain.CreateProductRequest) (*domain.Product, error)
	GetProduct(id int64) (*domain.Product, error)
	UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.Product, error)
	DeleteProduct(id int64) error

	// QueryCatalog 执行目录查询：过滤、排序、计数一次完成
	QueryCatalog(criteria catalog.Criteria) (*domain.ProductListResponse, error)
	// ListCategories 枚举全部类目
	ListCategories() ([]string, error)
	// ListOffers 返回打折商品，按折扣力度降序
	ListOffers() ([]*domain.Product, error)

	// ApplyOffer 给商品打折，重复打折基于原价重算
	ApplyOffer(id int64, req *domain.ApplyOfferRequest) (*domain.Product, error)
	// RemoveOffer 取消打折并恢复原价
	RemoveOffer(id int64) (*domain.Product, error)
}

// productService 是 ProductService 接口的实现
type productService struct {
	productRepo repo.ProductRepository
	engine      *catalog.Engine
	logger      *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(productRepo repo.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		engine:      catalog.NewEngine(),
		logger:      logger,
	}
}

// CreateProduct 创建商品
func (s *productService) CreateProduct(req *domain.CreateProductRequest) (*domain.Product, error) {
	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       domain.Round2(req.Price),
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}

	if err := s.productRepo.Create(product); err != nil {
		s.logger.Error("failed to create product", zap.Error(err))
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
	)
	return product, nil
}

// GetProduct 根据ID获取商品
func (s *productService) GetProduct(id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get product", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// UpdateProduct 更新商品，只修改请求中出现的字段。
// 打折期间修改价格不会重算折扣，原价快照保持不变。
func (s *productService) UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		product.Price = domain.Round2(*req.Price)
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if err := s.productRepo.Update(product); err != nil {
		s.logger.Error("failed to update product", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

// DeleteProduct 删除商品
func (s *productService) DeleteProduct(id int64) error {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}

	if err := s.productRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete product", zap.Int64("product_id", id), zap.Error(err))
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// QueryCatalog 执行目录查询
func (s *productService) QueryCatalog(criteria catalog.Criteria) (*domain.ProductListResponse, error) {
	snapshot, err := s.productRepo.ListAll()
	if err != nil {
		s.logger.Error("failed to load product snapshot", zap.Error(err))
		return nil, fmt.Errorf("load products: %w", err)
	}

	products := make([]domain.Product, 0, len(snapshot))
	for _, p := range snapshot {
		products = append(products, *p)
	}

	result := s.engine.Query(products, criteria)
	filtered := make([]*domain.Product, len(result.Products))
	for i := range result.Products {
		filtered[i] = &result.Products[i]
	}
	return &domain.ProductListResponse{
		Products:   filtered,
		Total:      result.Total,
		Filtered:   result.Filtered,
		Categories: s.engine.Categories(products),
	}, nil
}

// ListCategories 枚举全部类目
func (s *productService) ListCategories() ([]string, error) {
	snapshot, err := s.productRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	products := make([]domain.Product, 0, len(snapshot))
	for _, p := range snapshot {
		products = append(products, *p)
	}
	return s.engine.Categories(products), nil
}

// ListOffers 返回打折商品列表
func (s *productService) ListOffers() ([]*domain.Product, error) {
	offers, err := s.productRepo.ListOnOffer()
	if err != nil {
		s.logger.Error("failed to list offers", zap.Error(err))
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return offers, nil
}

// ApplyOffer 给商品打折
func (s *productService) ApplyOffer(id int64, req *domain.ApplyOfferRequest) (*domain.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	discounted, err := domain.ApplyOffer(*product, req.DiscountPercentage, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(&discounted); err != nil {
		s.logger.Error("failed to persist offer", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("apply offer: %w", err)
	}

	s.logger.Info("offer applied",
		zap.Int64("product_id", id),
		zap.Float64("discount_percentage", req.DiscountPercentage),
		zap.Float64("price", discounted.Price),
	)
	return &discounted, nil
}

// RemoveOffer 取消打折并恢复原价
func (s *productService) RemoveOffer(id int64) (*domain.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	restored, err := domain.RemoveOffer(*product)
	if err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(&restored); err != nil {
		s.logger.Error("failed to remove offer", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("remove offer: %w", err)
	}

	s.logger.Info("offer removed",
		zap.Int64("product_id", id),
		zap.Float64("price", restored.Price),
	)
	return &restored, nil
}
