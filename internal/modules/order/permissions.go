// README: Actor permission rules for state transitions and reads.
package order

import "hmarket/internal/types"

// CheckTransitionPermission decides whether an actor may request the given
// transition on an order. It does not validate the transition itself.
//
//   - admin: anything.
//   - livreur: delivery status only, and only on their own assignment. The one
//     exception, claiming an unassigned order, goes through the assignment
//     path, not here.
//   - client: cancelling their own order while it is still pending/confirmed.
func CheckTransitionPermission(o *Order, role Role, actorID types.ID, reqOrder *OrderStatus, reqDelivery *DeliveryStatus) error {
	switch role {
	case RoleAdmin:
		return nil
	case RoleDriver:
		if reqDelivery == nil {
			return ErrPermissionDenied
		}
		if o.DriverID == nil || *o.DriverID != actorID {
			return ErrPermissionDenied
		}
		return nil
	case RoleClient:
		if o.CustomerID != actorID {
			return ErrPermissionDenied
		}
		if reqDelivery != nil || reqOrder == nil || *reqOrder != OrderCancelled {
			return ErrPermissionDenied
		}
		if o.OrderStatus != OrderPending && o.OrderStatus != OrderConfirmed {
			return ErrPermissionDenied
		}
		return nil
	default:
		return ErrPermissionDenied
	}
}

// CanView reports whether an actor may read an order: clients see their own,
// drivers their assignments, admins everything.
func CanView(o *Order, role Role, actorID types.ID) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleClient:
		return o.CustomerID == actorID
	case RoleDriver:
		return o.DriverID != nil && *o.DriverID == actorID
	default:
		return false
	}
}
