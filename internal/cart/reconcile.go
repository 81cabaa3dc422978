// Package cart 实现购物车的核心业务规则：
// 按商品合并行、库存上限校验、数量边界校验，以及角标计数器的状态机。
// 规则本身是纯计算，持久化由上层服务配合仓储完成。
package cart

import (
	"errors"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

var (
	// ErrStockExceeded 表示合并或更新后的数量超过商品库存
	ErrStockExceeded = errors.New("cart: quantity exceeds available stock")
	// ErrInvalidQuantity 表示数量不在允许的范围内
	ErrInvalidQuantity = errors.New("cart: invalid quantity")
	// ErrLineNotFound 表示目标购物车行不存在
	ErrLineNotFound = errors.New("cart: line not found")
	// ErrProductNotFound 表示商品不存在或已下架
	ErrProductNotFound = errors.New("cart: product not found")
)

// MergedQuantity 计算向已有行合并 addQty 件商品后的数量。
// existingQty 为 0 表示新行。超过库存时返回 ErrStockExceeded，
// 不做静默截断，已有行保持原数量。
func MergedQuantity(existingQty, addQty, stock int64) (int64, error) {
	if addQty < 1 {
		return 0, ErrInvalidQuantity
	}
	merged := existingQty + addQty
	if merged > stock {
		return 0, ErrStockExceeded
	}
	return merged, nil
}

// ValidateQuantity 校验直接设置的数量是否落在 [1, stock] 区间。
// 越界一律拒绝而不是钳制到边界。
func ValidateQuantity(qty, stock int64) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if qty > stock {
		return ErrStockExceeded
	}
	return nil
}

// Total 计算购物车总价。
// 商品信息缺失的残缺行按 0 计，不中断整体求和。
func Total(items []*domain.CartItemWithProduct) float64 {
	var total float64
	for _, it := range items {
		if it == nil || it.CartItem == nil || it.Product == nil {
			continue
		}
		total += it.Product.Price * float64(it.Quantity)
	}
	return domain.Round2(total)
}

// Count 计算购物车商品总件数，即各行数量之和。
// 残缺行只要有数量就参与计数。
func Count(items []*domain.CartItemWithProduct) int64 {
	var count int64
	for _, it := range items {
		if it == nil || it.CartItem == nil {
			continue
		}
		count += it.Quantity
	}
	return count
}
