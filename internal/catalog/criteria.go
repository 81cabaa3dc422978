// Package catalog 实现商品目录的查询引擎。
// 引擎是纯内存计算：输入商品快照和查询条件，输出过滤、排序后的结果，
// 不直接依赖数据库或缓存。
package catalog

import "github.com/Lucassml-boop/commerce-e/internal/domain"

// SortKey 定义查询结果的排序方式
type SortKey string

const (
	SortNameAsc   SortKey = "name_asc"   // 名称升序（默认）
	SortNameDesc  SortKey = "name_desc"  // 名称降序
	SortPriceAsc  SortKey = "price_asc"  // 价格升序
	SortPriceDesc SortKey = "price_desc" // 价格降序
	SortNewest    SortKey = "newest"     // 上架时间倒序
)

// IsValid 判断排序键是否为已知值
func (k SortKey) IsValid() bool {
	switch k {
	case SortNameAsc, SortNameDesc, SortPriceAsc, SortPriceDesc, SortNewest:
		return true
	}
	return false
}

// Criteria 表示一次目录查询的全部条件。
// 各过滤条件之间为 AND 关系；零值字段表示不过滤。
type Criteria struct {
	// Search 为关键字搜索，匹配名称、描述或类目，
	// 首尾空白被忽略，大小写不敏感
	Search string
	// Category 为类目过滤，空串表示全部类目
	Category string
	// MinPrice/MaxPrice 为价格区间过滤，nil 表示无界
	MinPrice *float64
	MaxPrice *float64
	// Sort 为排序方式，零值回落到名称升序
	Sort SortKey
}

// Result 表示一次目录查询的结果。
// Total 是过滤前的商品总数，Filtered 是过滤后的数量。
type Result struct {
	Products []domain.Product
	Total    int
	Filtered int
}
