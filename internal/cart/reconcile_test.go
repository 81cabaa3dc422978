package cart

import (
	"errors"
	"testing"

	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

func TestMergedQuantity(t *testing.T) {
	tests := []struct {
		name        string
		existingQty int64
		addQty      int64
		stock       int64
		want        int64
		wantErr     error
	}{
		{"new line", 0, 1, 10, 1, nil},
		{"merge into existing line", 2, 1, 10, 3, nil},
		{"merge up to stock", 2, 3, 5, 5, nil},
		{"merge beyond stock rejected", 3, 1, 3, 0, ErrStockExceeded},
		{"add zero rejected", 2, 0, 10, 0, ErrInvalidQuantity},
		{"add negative rejected", 2, -1, 10, 0, ErrInvalidQuantity},
		{"zero stock rejects first add", 0, 1, 0, 0, ErrStockExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergedQuantity(tt.existingQty, tt.addQty, tt.stock)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MergedQuantity() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MergedQuantity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateQuantity(t *testing.T) {
	tests := []struct {
		name    string
		qty     int64
		stock   int64
		wantErr error
	}{
		{"within bounds", 3, 5, nil},
		{"exactly stock", 5, 5, nil},
		{"exactly one", 1, 5, nil},
		{"zero rejected not clamped", 0, 5, ErrInvalidQuantity},
		{"negative rejected", -2, 5, ErrInvalidQuantity},
		{"above stock rejected not clamped", 6, 5, ErrStockExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateQuantity(tt.qty, tt.stock); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuantity(%d, %d) = %v, want %v", tt.qty, tt.stock, err, tt.wantErr)
			}
		})
	}
}

func item(qty int64, price float64) *domain.CartItemWithProduct {
	return &domain.CartItemWithProduct{
		CartItem: &domain.CartItem{ID: 1, UserID: 1, ProductID: 1, Quantity: qty},
		Product:  &domain.Product{ID: 1, Name: "p", Price: price, Stock: 99},
	}
}

func TestTotal_SkipsMalformedLines(t *testing.T) {
	items := []*domain.CartItemWithProduct{
		item(2, 10.50),
		{CartItem: &domain.CartItem{ID: 2, UserID: 1, ProductID: 2, Quantity: 3}, Product: nil},
		nil,
		item(1, 0.49),
	}

	if got := Total(items); got != 21.49 {
		t.Errorf("Total() = %v, want 21.49", got)
	}
}

func TestCount_SumsQuantities(t *testing.T) {
	items := []*domain.CartItemWithProduct{
		item(2, 10),
		item(3, 20),
		// 商品信息缺失但数量有效的行仍参与计数
		{CartItem: &domain.CartItem{ID: 3, UserID: 1, ProductID: 3, Quantity: 4}},
		nil,
	}

	if got := Count(items); got != 9 {
		t.Errorf("Count() = %d, want 9", got)
	}
}

func TestTotal_Empty(t *testing.T) {
	if got := Total(nil); got != 0 {
		t.Errorf("Total(nil) = %v, want 0", got)
	}
}
