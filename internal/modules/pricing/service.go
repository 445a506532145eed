// README: Pure totals computation for checkout.
package pricing

import (
	"errors"
	"fmt"
)

var ErrInvalidInput = errors.New("invalid pricing input")

// DeliveryFee returns the fee in cents for a delivery mode.
func DeliveryFee(mode string) (int64, error) {
	fee, ok := deliveryFees[mode]
	if !ok {
		return 0, fmt.Errorf("%w: unknown delivery mode %q", ErrInvalidInput, mode)
	}
	return fee, nil
}

// Compute derives checkout totals from the order lines and delivery mode.
// All arithmetic is in integer cents; taxes are rounded half-up.
func Compute(items []Item, mode string, discounts int64) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, fmt.Errorf("%w: empty order", ErrInvalidInput)
	}
	if discounts < 0 {
		return Totals{}, fmt.Errorf("%w: negative discount", ErrInvalidInput)
	}

	var subtotal int64
	for i, it := range items {
		if it.Quantity <= 0 {
			return Totals{}, fmt.Errorf("%w: item %d has quantity %d", ErrInvalidInput, i, it.Quantity)
		}
		if it.UnitPrice < 0 {
			return Totals{}, fmt.Errorf("%w: item %d has negative unit price", ErrInvalidInput, i)
		}
		subtotal += it.UnitPrice * int64(it.Quantity)
	}

	fee, err := DeliveryFee(mode)
	if err != nil {
		return Totals{}, err
	}

	taxes := (subtotal*taxRatePct + 50) / 100
	total := subtotal + fee + taxes - discounts
	if total < 0 {
		total = 0
	}

	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Taxes:       taxes,
		Discounts:   discounts,
		Total:       total,
		Currency:    Currency,
	}, nil
}
