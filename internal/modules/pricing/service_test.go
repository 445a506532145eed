// README: Pricing computation tests.
package pricing

import (
	"errors"
	"testing"
)

func TestCompute_SingleExpressItem(t *testing.T) {
	got, err := Compute([]Item{{UnitPrice: 1299, Quantity: 1}}, "express", 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := Totals{
		Subtotal:    1299,
		DeliveryFee: 599,
		Taxes:       260, // 259.8 rounded half-up
		Discounts:   0,
		Total:       2158,
		Currency:    "EUR",
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCompute_FeeTable(t *testing.T) {
	cases := []struct {
		mode string
		fee  int64
	}{
		{"planned", 399},
		{"express", 599},
		{"outside_idf", 899},
	}
	for _, tc := range cases {
		got, err := Compute([]Item{{UnitPrice: 1000, Quantity: 2}}, tc.mode, 0)
		if err != nil {
			t.Fatalf("compute %s: %v", tc.mode, err)
		}
		if got.DeliveryFee != tc.fee {
			t.Errorf("mode %s: fee = %d, want %d", tc.mode, got.DeliveryFee, tc.fee)
		}
		if got.Total != got.Subtotal+got.DeliveryFee+got.Taxes-got.Discounts {
			t.Errorf("mode %s: total %d inconsistent with parts", tc.mode, got.Total)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	items := []Item{{UnitPrice: 1299, Quantity: 3}, {UnitPrice: 250, Quantity: 2}}
	a, err := Compute(items, "planned", 150)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	b, err := Compute(items, "planned", 150)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if a != b {
		t.Fatalf("identical inputs produced different totals: %+v vs %+v", a, b)
	}
}

func TestCompute_DiscountClampsToZero(t *testing.T) {
	got, err := Compute([]Item{{UnitPrice: 100, Quantity: 1}}, "planned", 100000)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.Total != 0 {
		t.Fatalf("total = %d, want 0", got.Total)
	}
}

func TestCompute_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		items []Item
		mode  string
		disc  int64
	}{
		{"empty items", nil, "planned", 0},
		{"zero quantity", []Item{{UnitPrice: 100, Quantity: 0}}, "planned", 0},
		{"negative quantity", []Item{{UnitPrice: 100, Quantity: -2}}, "planned", 0},
		{"negative price", []Item{{UnitPrice: -1, Quantity: 1}}, "planned", 0},
		{"unknown mode", []Item{{UnitPrice: 100, Quantity: 1}}, "teleport", 0},
		{"negative discount", []Item{{UnitPrice: 100, Quantity: 1}}, "planned", -5},
	}
	for _, tc := range cases {
		if _, err := Compute(tc.items, tc.mode, tc.disc); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}
