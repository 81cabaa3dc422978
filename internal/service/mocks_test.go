package service

import (
	"context"
	"sort"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

// MockProductRepository 是用于测试的商品仓储模拟实现
type MockProductRepository struct {
	products map[int64]*domain.Product
	nextID   int64

	// 可注入的错误，用于模拟数据库故障
	err error
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[int64]*domain.Product),
		nextID:   1,
	}
}

func (m *MockProductRepository) Create(product *domain.Product) error {
	if m.err != nil {
		return m.err
	}
	product.ID = m.nextID
	m.nextID++
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *MockProductRepository) GetByID(id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *MockProductRepository) GetByIDs(ids []int64) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockProductRepository) ListAll() ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]int64, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		clone := *m.products[id]
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MockProductRepository) ListOnOffer() ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	all, _ := m.ListAll()
	var offers []*domain.Product
	for _, p := range all {
		if p.IsOnOffer {
			offers = append(offers, p)
		}
	}
	sort.SliceStable(offers, func(i, j int) bool {
		var di, dj float64
		if offers[i].DiscountPercentage != nil {
			di = *offers[i].DiscountPercentage
		}
		if offers[j].DiscountPercentage != nil {
			dj = *offers[j].DiscountPercentage
		}
		return di > dj
	})
	return offers, nil
}

func (m *MockProductRepository) Update(product *domain.Product) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.products[product.ID]; !ok {
		return domainNotFoundErr{}
	}
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *MockProductRepository) Delete(id int64) error {
	if m.err != nil {
		return m.err
	}
	delete(m.products, id)
	return nil
}

func (m *MockProductRepository) Count() (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.products)), nil
}

type domainNotFoundErr struct{}

func (domainNotFoundErr) Error() string { return "not found" }

// MockCartRepository 是用于测试的购物车仓储模拟实现。
// 与真实表一样维护 (user_id, product_id) 唯一性。
type MockCartRepository struct {
	items    map[int64]*domain.CartItem
	nextID   int64
	products *MockProductRepository

	err error
}

func NewMockCartRepository(products *MockProductRepository) *MockCartRepository {
	return &MockCartRepository{
		items:    make(map[int64]*domain.CartItem),
		nextID:   1,
		products: products,
	}
}

func (m *MockCartRepository) GetItem(userID, productID int64) (*domain.CartItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, it := range m.items {
		if it.UserID == userID && it.ProductID == productID {
			clone := *it
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockCartRepository) GetItemByID(id int64) (*domain.CartItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	clone := *it
	return &clone, nil
}

func (m *MockCartRepository) ListByUser(userID int64) ([]*domain.CartItemWithProduct, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]int64, 0, len(m.items))
	for id, it := range m.items {
		if it.UserID == userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*domain.CartItemWithProduct
	for _, id := range ids {
		clone := *m.items[id]
		with := &domain.CartItemWithProduct{CartItem: &clone}
		if m.products != nil {
			if p, _ := m.products.GetByID(clone.ProductID); p != nil {
				with.Product = p
			}
		}
		out = append(out, with)
	}
	return out, nil
}

func (m *MockCartRepository) Insert(item *domain.CartItem) error {
	if m.err != nil {
		return m.err
	}
	item.ID = m.nextID
	m.nextID++
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *MockCartRepository) UpdateQuantity(id, quantity int64) error {
	if m.err != nil {
		return m.err
	}
	it, ok := m.items[id]
	if !ok {
		return domainNotFoundErr{}
	}
	it.Quantity = quantity
	return nil
}

func (m *MockCartRepository) Delete(id int64) error {
	if m.err != nil {
		return m.err
	}
	delete(m.items, id)
	return nil
}

func (m *MockCartRepository) DeleteByUser(userID int64) error {
	if m.err != nil {
		return m.err
	}
	for id, it := range m.items {
		if it.UserID == userID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *MockCartRepository) CountByUser(_ context.Context, userID int64) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var count int64
	for _, it := range m.items {
		if it.UserID == userID {
			count += it.Quantity
		}
	}
	return count, nil
}
