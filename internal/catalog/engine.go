package catalog

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

// Engine 是目录查询引擎，可并发使用。
// 名称排序使用区域感知的字符串比较。collator 内部带缓冲区不可并发使用，
// 因此每次查询从池里借一个，用完归还。
type Engine struct {
	collators sync.Pool
}

// NewEngine 创建目录查询引擎
func NewEngine() *Engine {
	return &Engine{
		collators: sync.Pool{
			New: func() any {
				// 忽略大小写的区域感知比较，保证 "apple" 与 "Apple" 相邻
				return collate.New(language.Und, collate.IgnoreCase)
			},
		},
	}
}

// Query 对商品快照执行过滤与排序，返回结果副本。
// 过滤条件之间为 AND 关系；当 MinPrice > MaxPrice 时区间为空集，结果无商品。
// 搜索词在引擎内部做去首尾空白和小写归一，调用方无需预处理。
// 排序全部使用稳定排序，键值相等的商品保持输入顺序。
func (e *Engine) Query(products []domain.Product, c Criteria) Result {
	needle := strings.ToLower(strings.TrimSpace(c.Search))

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if matches(&p, &c, needle) {
			filtered = append(filtered, p)
		}
	}

	e.sortProducts(filtered, c.Sort)

	return Result{
		Products: filtered,
		Total:    len(products),
		Filtered: len(filtered),
	}
}

// Categories 返回快照中出现过的类目，去重并按名称升序。
// 空类目不参与枚举。
func (e *Engine) Categories(products []domain.Product) []string {
	seen := make(map[string]struct{}, len(products))
	categories := make([]string, 0, len(products))
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}

	col := e.collators.Get().(*collate.Collator)
	defer e.collators.Put(col)

	sort.Slice(categories, func(i, j int) bool {
		return col.CompareString(categories[i], categories[j]) < 0
	})
	return categories
}

func matches(p *domain.Product, c *Criteria, needle string) bool {
	if needle != "" {
		name := strings.ToLower(p.Name)
		desc := strings.ToLower(p.Description)
		category := strings.ToLower(p.Category)
		if !strings.Contains(name, needle) &&
			!strings.Contains(desc, needle) &&
			!strings.Contains(category, needle) {
			return false
		}
	}
	if c.Category != "" && p.Category != c.Category {
		return false
	}
	if c.MinPrice != nil && p.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && p.Price > *c.MaxPrice {
		return false
	}
	return true
}

func (e *Engine) sortProducts(products []domain.Product, key SortKey) {
	var less func(i, j int) bool
	switch key {
	case SortPriceAsc:
		less = func(i, j int) bool { return products[i].Price < products[j].Price }
	case SortPriceDesc:
		less = func(i, j int) bool { return products[i].Price > products[j].Price }
	case SortNewest:
		less = func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) }
	case SortNameDesc:
		col := e.collators.Get().(*collate.Collator)
		defer e.collators.Put(col)
		less = func(i, j int) bool {
			return col.CompareString(products[i].Name, products[j].Name) > 0
		}
	default:
		// 未知或空排序键回落到名称升序
		col := e.collators.Get().(*collate.Collator)
		defer e.collators.Put(col)
		less = func(i, j int) bool {
			return col.CompareString(products[i].Name, products[j].Name) < 0
		}
	}
	sort.SliceStable(products, less)
}
