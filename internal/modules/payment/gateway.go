// README: Opaque payment gateway capability used by checkout.
package payment

import (
	"context"

	"hmarket/internal/types"
)

// Result is the outcome of a charge attempt. The provider's protocol details
// stay behind the gateway implementation.
type Result struct {
	Succeeded bool
	Reference string
}

// Gateway charges the customer for an order. Implementations wrap the actual
// payment provider; the core only cares about succeeded/failed.
type Gateway interface {
	Charge(ctx context.Context, orderID types.ID, amount types.Money) (Result, error)
}

// NopGateway approves every charge. Used in development and tests.
type NopGateway struct{}

func (NopGateway) Charge(_ context.Context, orderID types.ID, _ types.Money) (Result, error) {
	return Result{Succeeded: true, Reference: "nop-" + string(orderID)}, nil
}
