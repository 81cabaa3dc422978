package domain

import (
	"time"
)

// CartItem 表示购物车中的一行。
// 唯一性不变式：同一 (UserID, ProductID) 至多存在一行，
// 重复加购必须合并到已有行而不是新增行。
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"` // 任意时刻满足 1 <= Quantity <= 商品库存
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItemWithProduct 表示关联了商品展示字段的购物车行。
// 商品信息在查询时一次性读取，之后不随商品变更实时刷新。
type CartItemWithProduct struct {
	*CartItem
	Product *Product `json:"product"`
}

// AddToCartRequest 表示加购请求
type AddToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int64 `json:"quantity" binding:"gte=0"` // 0 按默认1处理
}

// UpdateCartItemRequest 表示修改购物车行数量的请求。
// 数量降到0以下应走删除接口，这里的下限是1。
type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity" binding:"required,gte=1"`
}

// CartResponse 表示购物车查询响应
type CartResponse struct {
	Items []*CartItemWithProduct `json:"items"`
	Total float64                `json:"total"` // 按生效价格计算的合计金额
	Count int64                  `json:"count"` // 所有行数量之和
}

// CartCountResponse 表示购物车角标计数响应。
// State 为 "ready" 时计数可信，其余状态下前端应隐藏角标。
type CartCountResponse struct {
	Count int64  `json:"count"`
	State string `json:"state"`
}
