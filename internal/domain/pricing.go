package domain

import (
	"errors"
	"math"
	"time"
)

// 定价相关的业务错误
var (
	// ErrInvalidDiscount 折扣百分比超出 (0, 90] 范围
	ErrInvalidDiscount = errors.New("discount percentage must be in (0, 90]")
	// ErrNotOnOffer 商品当前没有生效的优惠
	ErrNotOnOffer = errors.New("product is not on offer")
)

// MaxDiscountPercentage 后台允许的最大折扣百分比
const MaxDiscountPercentage = 90.0

// Round2 将金额按货币语义保留两位小数（四舍五入，远离零）。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ApplyOffer 为商品创建或更新优惠，返回更新后的商品副本。
// 折扣基准始终是首次进入优惠时捕获的原价：对已在优惠中的商品
// 再次应用优惠不会在已折扣价格上叠加折扣。
// 优惠日期原样保存，不做先后校验，也不影响价格生效（仅供展示）。
func ApplyOffer(p Product, discountPercentage float64, startDate, endDate *time.Time) (Product, error) {
	if discountPercentage <= 0 || discountPercentage > MaxDiscountPercentage {
		return p, ErrInvalidDiscount
	}

	base := p.Price
	if p.IsOnOffer && p.OriginalPrice != nil {
		base = *p.OriginalPrice
	}

	p.OriginalPrice = &base
	p.DiscountPercentage = &discountPercentage
	p.Price = Round2(base * (1 - discountPercentage/100))
	p.IsOnOffer = true
	p.OfferStartDate = startDate
	p.OfferEndDate = endDate

	return p, nil
}

// RemoveOffer 撤销商品优惠，恢复原价并清空所有优惠字段。
// 对未在优惠中的商品调用返回 ErrNotOnOffer，调用方应先检查状态。
func RemoveOffer(p Product) (Product, error) {
	if !p.IsOnOffer || p.OriginalPrice == nil {
		return p, ErrNotOnOffer
	}

	p.Price = *p.OriginalPrice
	p.OriginalPrice = nil
	p.DiscountPercentage = nil
	p.OfferStartDate = nil
	p.OfferEndDate = nil
	p.IsOnOffer = false

	return p, nil
}
