package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Lucassml-boop/commerce-e/internal/cache"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

// 缓存键常量
const (
	productSnapshotKey = "products:snapshot" // 全量快照
	productOffersKey   = "products:offers"   // 打折商品列表
)

// CachedProductRepository 带缓存的商品仓储。
// 单品按 ID 缓存，目录快照和打折列表整体缓存，任何写操作使缓存全部失效。
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, cache cache.Cache, ttl time.Duration) ProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// Create 创建商品并使列表缓存失效
func (r *CachedProductRepository) Create(product *domain.Product) error {
	if err := r.repo.Create(product); err != nil {
		return err
	}
	r.invalidateLists()
	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(id int64) (*domain.Product, error) {
	ctx := context.Background()
	cacheKey := r.productKey(id)

	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	// 缓存未命中，回源数据库
	result, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	r.cache.Set(ctx, cacheKey, result, r.ttl)
	return result, nil
}

// GetByIDs 批量获取商品（部分缓存）
func (r *CachedProductRepository) GetByIDs(ids []int64) ([]*domain.Product, error) {
	ctx := context.Background()
	var cached []*domain.Product
	var missing []int64

	for _, id := range ids {
		var product domain.Product
		if err := r.cache.Get(ctx, r.productKey(id), &product); err == nil {
			cached = append(cached, &product)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return cached, nil
	}

	fromDB, err := r.repo.GetByIDs(missing)
	if err != nil {
		return nil, err
	}
	for _, p := range fromDB {
		r.cache.Set(ctx, r.productKey(p.ID), p, r.ttl)
	}

	return append(cached, fromDB...), nil
}

// ListAll 返回全量商品快照（整体缓存）
func (r *CachedProductRepository) ListAll() ([]*domain.Product, error) {
	ctx := context.Background()

	var snapshot []*domain.Product
	if err := r.cache.Get(ctx, productSnapshotKey, &snapshot); err == nil {
		return snapshot, nil
	}

	snapshot, err := r.repo.ListAll()
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, productSnapshotKey, snapshot, r.ttl)
	return snapshot, nil
}

// ListOnOffer 返回打折商品列表（整体缓存）
func (r *CachedProductRepository) ListOnOffer() ([]*domain.Product, error) {
	ctx := context.Background()

	var offers []*domain.Product
	if err := r.cache.Get(ctx, productOffersKey, &offers); err == nil {
		return offers, nil
	}

	offers, err := r.repo.ListOnOffer()
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, productOffersKey, offers, r.ttl)
	return offers, nil
}

// Update 更新商品并使相关缓存失效
func (r *CachedProductRepository) Update(product *domain.Product) error {
	if err := r.repo.Update(product); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productKey(product.ID))
	r.invalidateLists()
	return nil
}

// Delete 删除商品并使相关缓存失效
func (r *CachedProductRepository) Delete(id int64) error {
	if err := r.repo.Delete(id); err != nil {
		return err
	}

	ctx := context.Background()
	r.cache.Del(ctx, r.productKey(id))
	r.invalidateLists()
	return nil
}

// Count 获取商品总数（不缓存）
func (r *CachedProductRepository) Count() (int64, error) {
	return r.repo.Count()
}

func (r *CachedProductRepository) invalidateLists() {
	ctx := context.Background()
	r.cache.Del(ctx, productSnapshotKey)
	r.cache.Del(ctx, productOffersKey)
}

func (r *CachedProductRepository) productKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}
