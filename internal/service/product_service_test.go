package service

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/catalog"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

func newTestProductService() (ProductService, *MockProductRepository) {
	mockRepo := NewMockProductRepository()
	return NewProductService(mockRepo, zap.NewNop()), mockRepo
}

func seedProduct(t *testing.T, svc ProductService, name, category string, price float64, stock int64) *domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(&domain.CreateProductRequest{
		Name:     name,
		Category: category,
		Price:    price,
		Stock:    stock,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s) failed: %v", name, err)
	}
	return p
}

func TestProductService_CreateAndGet(t *testing.T) {
	svc, _ := newTestProductService()

	created := seedProduct(t, svc, "Keyboard", "electronics", 49.99, 5)
	if created.ID == 0 {
		t.Fatal("expected assigned product id")
	}

	got, err := svc.GetProduct(created.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Name != "Keyboard" || got.Price != 49.99 {
		t.Errorf("got %+v, want name Keyboard price 49.99", got)
	}

	_, err = svc.GetProduct(999)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("GetProduct(999) error = %v, want ErrProductNotFound", err)
	}
}

func TestProductService_UpdatePartialFields(t *testing.T) {
	svc, _ := newTestProductService()
	p := seedProduct(t, svc, "Mouse", "electronics", 20, 10)

	newPrice := 25.0
	updated, err := svc.UpdateProduct(p.ID, &domain.UpdateProductRequest{Price: &newPrice})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if updated.Price != 25 {
		t.Errorf("Price = %v, want 25", updated.Price)
	}
	if updated.Name != "Mouse" || updated.Stock != 10 {
		t.Error("fields not present in the request must stay unchanged")
	}
}

func TestProductService_QueryCatalog(t *testing.T) {
	svc, _ := newTestProductService()
	seedProduct(t, svc, "Banana", "food", 5, 100)
	seedProduct(t, svc, "apple", "food", 3, 100)
	seedProduct(t, svc, "Cable", "electronics", 10, 100)

	res, err := svc.QueryCatalog(catalog.Criteria{Category: "food"})
	if err != nil {
		t.Fatalf("QueryCatalog failed: %v", err)
	}
	if res.Total != 3 || res.Filtered != 2 {
		t.Errorf("Total/Filtered = %d/%d, want 3/2", res.Total, res.Filtered)
	}
	// 默认按名称升序，大小写不敏感
	if len(res.Products) != 2 || res.Products[0].Name != "apple" || res.Products[1].Name != "Banana" {
		t.Errorf("unexpected order: %v", res.Products)
	}
	if len(res.Categories) != 2 || res.Categories[0] != "electronics" || res.Categories[1] != "food" {
		t.Errorf("Categories = %v, want [electronics food]", res.Categories)
	}
}

func TestProductService_ApplyAndRemoveOffer(t *testing.T) {
	svc, _ := newTestProductService()
	p := seedProduct(t, svc, "Lamp", "home", 100, 5)

	discounted, err := svc.ApplyOffer(p.ID, &domain.ApplyOfferRequest{DiscountPercentage: 20})
	if err != nil {
		t.Fatalf("ApplyOffer failed: %v", err)
	}
	if discounted.Price != 80 || !discounted.IsOnOffer {
		t.Errorf("got price %v on_offer %v, want 80 true", discounted.Price, discounted.IsOnOffer)
	}

	// 折上折必须基于原价重算
	again, err := svc.ApplyOffer(p.ID, &domain.ApplyOfferRequest{DiscountPercentage: 10})
	if err != nil {
		t.Fatalf("second ApplyOffer failed: %v", err)
	}
	if again.Price != 90 {
		t.Errorf("Price = %v, want 90", again.Price)
	}

	restored, err := svc.RemoveOffer(p.ID)
	if err != nil {
		t.Fatalf("RemoveOffer failed: %v", err)
	}
	if restored.Price != 100 || restored.IsOnOffer {
		t.Errorf("got price %v on_offer %v, want 100 false", restored.Price, restored.IsOnOffer)
	}

	_, err = svc.RemoveOffer(p.ID)
	if !errors.Is(err, domain.ErrNotOnOffer) {
		t.Errorf("RemoveOffer on regular product error = %v, want ErrNotOnOffer", err)
	}
}

func TestProductService_ApplyOffer_InvalidDiscount(t *testing.T) {
	svc, repoMock := newTestProductService()
	p := seedProduct(t, svc, "Desk", "home", 200, 2)

	_, err := svc.ApplyOffer(p.ID, &domain.ApplyOfferRequest{DiscountPercentage: 95})
	if !errors.Is(err, domain.ErrInvalidDiscount) {
		t.Fatalf("ApplyOffer(95) error = %v, want ErrInvalidDiscount", err)
	}

	// 校验失败时不允许落库
	stored, _ := repoMock.GetByID(p.ID)
	if stored.IsOnOffer || stored.Price != 200 {
		t.Error("rejected offer must not be persisted")
	}
}

func TestProductService_ListOffers(t *testing.T) {
	svc, _ := newTestProductService()
	a := seedProduct(t, svc, "A", "x", 100, 1)
	b := seedProduct(t, svc, "B", "x", 100, 1)
	seedProduct(t, svc, "C", "x", 100, 1)

	if _, err := svc.ApplyOffer(a.ID, &domain.ApplyOfferRequest{DiscountPercentage: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApplyOffer(b.ID, &domain.ApplyOfferRequest{DiscountPercentage: 50}); err != nil {
		t.Fatal(err)
	}

	offers, err := svc.ListOffers()
	if err != nil {
		t.Fatalf("ListOffers failed: %v", err)
	}
	// 折扣力度大的在前
	if len(offers) != 2 || offers[0].ID != b.ID || offers[1].ID != a.ID {
		t.Errorf("unexpected offers order: %v", offers)
	}
}
