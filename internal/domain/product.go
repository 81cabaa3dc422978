package domain

import (
	"time"
)

// Product 表示商品领域模型。
// 价格相关不变式：IsOnOffer 为 true 时 OriginalPrice 必须存在，
// 且 Price == Round2(OriginalPrice * (1 - DiscountPercentage/100))；
// IsOnOffer 为 false 时所有优惠字段均为空，Price 即商家定价。
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"` // 当前生效（展示）价格
	Stock       int64   `json:"stock"`
	ImageURL    string  `json:"image_url"`

	// 优惠相关字段；优惠日期仅作展示用途，核心逻辑不校验也不按日期生效
	IsOnOffer          bool       `json:"is_on_offer"`
	OriginalPrice      *float64   `json:"original_price,omitempty"`
	DiscountPercentage *float64   `json:"discount_percentage,omitempty"`
	OfferStartDate     *time.Time `json:"offer_start_date,omitempty"`
	OfferEndDate       *time.Time `json:"offer_end_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InStock 判断商品是否有库存
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Savings 返回相对原价节省的金额；未在优惠中返回0。
func (p *Product) Savings() float64 {
	if !p.IsOnOffer || p.OriginalPrice == nil {
		return 0
	}
	return *p.OriginalPrice - p.Price
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=255"`
	Description string  `json:"description"`
	Category    string  `json:"category" binding:"required,min=1,max=100"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       int64   `json:"stock" binding:"gte=0"`
	ImageURL    string  `json:"image_url"`
}

// UpdateProductRequest 表示更新商品基础字段的请求。
// 只更新非nil字段；直接改价不会联动优惠字段（与后台现有行为保持一致）。
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Stock       *int64   `json:"stock"`
	ImageURL    *string  `json:"image_url"`
}

// ApplyOfferRequest 表示为商品创建优惠的请求
type ApplyOfferRequest struct {
	DiscountPercentage float64    `json:"discount_percentage" binding:"required,gt=0,lte=90"`
	StartDate          *time.Time `json:"offer_start_date"`
	EndDate            *time.Time `json:"offer_end_date"`
}

// ProductListResponse 表示商品列表查询响应。
// Total 为全量商品数，Filtered 为筛选后的数量，二者一并返回避免前端二次统计。
type ProductListResponse struct {
	Products   []*Product `json:"products"`
	Total      int        `json:"total"`
	Filtered   int        `json:"filtered"`
	Categories []string   `json:"categories"`
}
