package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/cart"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
	"github.com/Lucassml-boop/commerce-e/internal/event"
)

func newTestCartService() (CartService, *MockProductRepository, *event.Bus) {
	products := NewMockProductRepository()
	carts := NewMockCartRepository(products)
	bus := event.NewBus()
	return NewCartService(carts, products, bus, zap.NewNop()), products, bus
}

func seedStock(t *testing.T, products *MockProductRepository, name string, price float64, stock int64) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Category: "x", Price: price, Stock: stock}
	if err := products.Create(p); err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	return p
}

func TestCartService_AddItem_MergesSameProduct(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 10)

	first, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("first AddItem failed: %v", err)
	}

	// 重复加入同一商品必须合并到原行而不是新建行
	second, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("second AddItem failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected merge into line %d, got new line %d", first.ID, second.ID)
	}
	if second.Quantity != 2 {
		t.Errorf("Quantity = %d, want 2", second.Quantity)
	}

	res, err := svc.GetCart(1)
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if len(res.Items) != 1 {
		t.Errorf("cart has %d lines, want 1", len(res.Items))
	}
}

func TestCartService_AddItem_DefaultQuantityIsOne(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 10)

	item, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if item.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", item.Quantity)
	}
}

func TestCartService_AddItem_StockExceeded(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Limited", 9.9, 3)

	if _, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 3}); err != nil {
		t.Fatalf("AddItem up to stock failed: %v", err)
	}

	// 已满库存后再加一件必须拒绝，原行保持不变
	_, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	if !errors.Is(err, cart.ErrStockExceeded) {
		t.Fatalf("AddItem beyond stock error = %v, want ErrStockExceeded", err)
	}

	res, _ := svc.GetCart(1)
	if len(res.Items) != 1 || res.Items[0].Quantity != 3 {
		t.Errorf("cart state changed after rejected add: %+v", res.Items)
	}
}

func TestCartService_AddItem_UnknownProduct(t *testing.T) {
	svc, _, _ := newTestCartService()
	_, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: 42, Quantity: 1})
	if !errors.Is(err, cart.ErrProductNotFound) {
		t.Errorf("AddItem error = %v, want ErrProductNotFound", err)
	}
}

func TestCartService_UpdateItemQuantity_Bounds(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 5)
	item, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	updated, err := svc.UpdateItemQuantity(1, item.ID, &domain.UpdateCartItemRequest{Quantity: 5})
	if err != nil {
		t.Fatalf("UpdateItemQuantity failed: %v", err)
	}
	if updated.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", updated.Quantity)
	}

	// 越界一律拒绝，不做钳制
	if _, err := svc.UpdateItemQuantity(1, item.ID, &domain.UpdateCartItemRequest{Quantity: 6}); !errors.Is(err, cart.ErrStockExceeded) {
		t.Errorf("quantity 6 error = %v, want ErrStockExceeded", err)
	}
	if _, err := svc.UpdateItemQuantity(1, item.ID, &domain.UpdateCartItemRequest{Quantity: 0}); !errors.Is(err, cart.ErrInvalidQuantity) {
		t.Errorf("quantity 0 error = %v, want ErrInvalidQuantity", err)
	}

	res, _ := svc.GetCart(1)
	if res.Items[0].Quantity != 5 {
		t.Errorf("Quantity = %d after rejected updates, want 5", res.Items[0].Quantity)
	}
}

func TestCartService_UpdateItemQuantity_OtherUsersLineInvisible(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 5)
	item, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	_, err = svc.UpdateItemQuantity(2, item.ID, &domain.UpdateCartItemRequest{Quantity: 2})
	if !errors.Is(err, cart.ErrLineNotFound) {
		t.Errorf("cross-user update error = %v, want ErrLineNotFound", err)
	}
}

func TestCartService_RemoveItem_Idempotent(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 5)
	item, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if err := svc.RemoveItem(1, item.ID); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	// 再删一次也是成功
	if err := svc.RemoveItem(1, item.ID); err != nil {
		t.Errorf("second RemoveItem error = %v, want nil", err)
	}

	res, _ := svc.GetCart(1)
	if len(res.Items) != 0 {
		t.Errorf("cart has %d lines, want 0", len(res.Items))
	}
}

func TestCartService_GetCart_TotalAndCount(t *testing.T) {
	svc, products, _ := newTestCartService()
	pen := seedStock(t, products, "Pen", 2.5, 10)
	book := seedStock(t, products, "Book", 12.99, 10)

	if _, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: pen.ID, Quantity: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: book.ID, Quantity: 2}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.GetCart(1)
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if res.Total != 35.98 {
		t.Errorf("Total = %v, want 35.98", res.Total)
	}
	if res.Count != 6 {
		t.Errorf("Count = %d, want 6", res.Count)
	}
}

func TestCartService_ClearCart(t *testing.T) {
	svc, products, _ := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 10)
	if _, err := svc.AddItem(1, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 2}); err != nil {
		t.Fatal(err)
	}

	if err := svc.ClearCart(1); err != nil {
		t.Fatalf("ClearCart failed: %v", err)
	}
	count, err := svc.CountItems(context.Background(), 1)
	if err != nil {
		t.Fatalf("CountItems failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestCartService_PublishesChangeEvents(t *testing.T) {
	svc, products, bus := newTestCartService()
	p := seedStock(t, products, "Pen", 2.5, 10)

	var events []event.CartChanged
	bus.Subscribe(func(ev event.CartChanged) { events = append(events, ev) })

	item, err := svc.AddItem(7, &domain.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateItemQuantity(7, item.ID, &domain.UpdateCartItemRequest{Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveItem(7, item.ID); err != nil {
		t.Fatal(err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.UserID != 7 || ev.Source != event.SourceLocal {
			t.Errorf("event[%d] = %+v, want user 7 source local", i, ev)
		}
	}

	// 被拒绝的写操作不发事件
	events = nil
	if _, err := svc.AddItem(7, &domain.AddToCartRequest{ProductID: 42}); err == nil {
		t.Fatal("expected error for unknown product")
	}
	if len(events) != 0 {
		t.Errorf("rejected write published %d events, want 0", len(events))
	}
}
