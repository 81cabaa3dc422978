package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/cart"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/event"
	"github.com/Lucassml-boop/commerce-e/internal/repo"
)

// CartService 定义购物车服务接口。
// 所有写操作遵循同一准则：同一商品合并到一行、库存是数量硬上限、
// 越界一律拒绝。写入成功后发布变更事件，驱动角标重算。
type CartService interface {
	// AddItem 向购物车加入商品，已有行则合并数量
	AddItem(userID int64, req *domain.AddToCartRequest) (*domain.CartItem, error)
	// UpdateItemQuantity 把购物车行数量改为指定值
	UpdateItemQuantity(userID, itemID int64, req *domain.UpdateCartItemRequest) (*domain.CartItem, error)
	// RemoveItem 删除购物车行，行不存在视为成功
	RemoveItem(userID, itemID int64) error
	// ClearCart 清空用户购物车
	ClearCart(userID int64) error
	// GetCart 返回购物车内容、总价和件数
	GetCart(userID int64) (*domain.CartResponse, error)
	// CountItems 返回购物车商品总件数
	CountItems(ctx context.Context, userID int64) (int64, error)
}

// cartService 是 CartService 接口的实现
type cartService struct {
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
	bus         *event.Bus
	logger      *zap.Logger
}

// NewCartService 创建购物车服务实例
func NewCartService(
	cartRepo repo.CartRepository,
	productRepo repo.ProductRepository,
	bus *event.Bus,
	logger *zap.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		bus:         bus,
		logger:      logger,
	}
}

// AddItem 向购物车加入商品。
// 同一用户同一商品只保留一行，重复加入时在已有行上合并数量，
// 合并后超出库存则整个操作拒绝，已有行保持不变。
func (s *cartService) AddItem(userID int64, req *domain.AddToCartRequest) (*domain.CartItem, error) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1 // 未指定数量时默认加一件
	}

	product, err := s.productRepo.GetByID(req.ProductID)
	if err != nil {
		s.logger.Error("failed to get product for cart", zap.Int64("product_id", req.ProductID), zap.Error(err))
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, cart.ErrProductNotFound
	}

	existing, err := s.cartRepo.GetItem(userID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	var existingQty int64
	if existing != nil {
		existingQty = existing.Quantity
	}

	merged, err := cart.MergedQuantity(existingQty, quantity, product.Stock)
	if err != nil {
		return nil, err
	}

	var item *domain.CartItem
	if existing == nil {
		item = &domain.CartItem{
			UserID:    userID,
			ProductID: req.ProductID,
			Quantity:  merged,
		}
		if err := s.cartRepo.Insert(item); err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
	} else {
		if err := s.cartRepo.UpdateQuantity(existing.ID, merged); err != nil {
			return nil, fmt.Errorf("merge cart item: %w", err)
		}
		existing.Quantity = merged
		item = existing
	}

	s.logger.Info("cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", req.ProductID),
		zap.Int64("quantity", item.Quantity),
		zap.Bool("merged", existing != nil),
	)
	s.publishChanged(userID)
	return item, nil
}

// UpdateItemQuantity 把购物车行数量改为指定值。
// 数量必须落在 [1, 库存] 区间，越界直接拒绝而不是钳制。
func (s *cartService) UpdateItemQuantity(userID, itemID int64, req *domain.UpdateCartItemRequest) (*domain.CartItem, error) {
	item, err := s.cartRepo.GetItemByID(itemID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	if item == nil || item.UserID != userID {
		return nil, cart.ErrLineNotFound
	}

	product, err := s.productRepo.GetByID(item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, cart.ErrProductNotFound
	}

	if err := cart.ValidateQuantity(req.Quantity, product.Stock); err != nil {
		return nil, err
	}

	if err := s.cartRepo.UpdateQuantity(itemID, req.Quantity); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	item.Quantity = req.Quantity

	s.logger.Info("cart item quantity updated",
		zap.Int64("user_id", userID),
		zap.Int64("item_id", itemID),
		zap.Int64("quantity", req.Quantity),
	)
	s.publishChanged(userID)
	return item, nil
}

// RemoveItem 删除购物车行。
// 行不存在或已被并发删除都视为成功，保证操作幂等。
func (s *cartService) RemoveItem(userID, itemID int64) error {
	item, err := s.cartRepo.GetItemByID(itemID)
	if err != nil {
		return fmt.Errorf("get cart item: %w", err)
	}
	if item == nil || item.UserID != userID {
		return nil
	}

	if err := s.cartRepo.Delete(itemID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	s.logger.Info("cart item removed",
		zap.Int64("user_id", userID),
		zap.Int64("item_id", itemID),
	)
	s.publishChanged(userID)
	return nil
}

// ClearCart 清空用户购物车
func (s *cartService) ClearCart(userID int64) error {
	if err := s.cartRepo.DeleteByUser(userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.logger.Info("cart cleared", zap.Int64("user_id", userID))
	s.publishChanged(userID)
	return nil
}

// GetCart 返回购物车内容。
// 总价计算跳过商品已失效的残缺行，不让单行故障拖垮整个购物车页面。
func (s *cartService) GetCart(userID int64) (*domain.CartResponse, error) {
	items, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		s.logger.Error("failed to list cart", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list cart: %w", err)
	}

	return &domain.CartResponse{
		Items: items,
		Total: cart.Total(items),
		Count: cart.Count(items),
	}, nil
}

// CountItems 返回购物车商品总件数
func (s *cartService) CountItems(ctx context.Context, userID int64) (int64, error) {
	count, err := s.cartRepo.CountByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return count, nil
}

// publishChanged 在写入提交后发布变更事件。
// 事件只是角标重算的触发器，丢失不影响数据正确性。
func (s *cartService) publishChanged(userID int64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.CartChanged{UserID: userID, Source: event.SourceLocal})
}
