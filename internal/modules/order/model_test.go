// README: State machine tests: transition tables, coupling, permissions.
package order

import (
	"testing"

	"hmarket/internal/types"
)

var allOrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderPreparing, OrderReadyForPickup,
	OrderOutForDelivery, OrderDelivered, OrderCancelled, OrderFailed,
}

var allDeliveryStatuses = []DeliveryStatus{
	DeliveryPending, DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit,
	DeliveryArrived, DeliveryDelivered, DeliveryFailed,
}

func TestCanTransitionOrder(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		// happy-path forward transitions
		{OrderPending, OrderConfirmed, true},
		{OrderConfirmed, OrderPreparing, true},
		{OrderPreparing, OrderReadyForPickup, true},
		{OrderReadyForPickup, OrderOutForDelivery, true},
		{OrderOutForDelivery, OrderDelivered, true},
		// cancels
		{OrderPending, OrderCancelled, true},
		{OrderConfirmed, OrderCancelled, true},
		{OrderPreparing, OrderCancelled, true},
		{OrderReadyForPickup, OrderCancelled, true},
		{OrderOutForDelivery, OrderCancelled, false},
		// failure and retry
		{OrderOutForDelivery, OrderFailed, true},
		{OrderFailed, OrderPreparing, true},
		{OrderFailed, OrderCancelled, false},
		// terminal states have no outgoing transitions
		{OrderDelivered, OrderPending, false},
		{OrderCancelled, OrderConfirmed, false},
		// skipping states
		{OrderPending, OrderPreparing, false},
		{OrderPending, OrderDelivered, false},
		{OrderConfirmed, OrderOutForDelivery, false},
	}
	for _, tc := range cases {
		if got := CanTransitionOrder(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionOrder(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCanTransitionDelivery(t *testing.T) {
	cases := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryPending, DeliveryAssigned, true},
		{DeliveryAssigned, DeliveryPickedUp, true},
		{DeliveryPickedUp, DeliveryInTransit, true},
		{DeliveryInTransit, DeliveryArrived, true},
		{DeliveryArrived, DeliveryDelivered, true},
		// failure only at the door, retry re-assigns
		{DeliveryArrived, DeliveryFailed, true},
		{DeliveryFailed, DeliveryAssigned, true},
		{DeliveryInTransit, DeliveryFailed, false},
		// no going backwards
		{DeliveryPickedUp, DeliveryAssigned, false},
		{DeliveryInTransit, DeliveryPickedUp, false},
		// terminal
		{DeliveryDelivered, DeliveryPending, false},
		{DeliveryDelivered, DeliveryFailed, false},
		// skipping
		{DeliveryPending, DeliveryPickedUp, false},
		{DeliveryAssigned, DeliveryInTransit, false},
		{DeliveryAssigned, DeliveryDelivered, false},
	}
	for _, tc := range cases {
		if got := CanTransitionDelivery(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionDelivery(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

// TestTransitionTableClosure walks every pair: anything not in the table must
// be rejected, and the tables must only name known statuses.
func TestTransitionTableClosure(t *testing.T) {
	known := make(map[OrderStatus]bool)
	for _, s := range allOrderStatuses {
		known[s] = true
	}
	for from, tos := range OrderTransitions {
		if !known[from] {
			t.Errorf("unknown order status %q in table", from)
		}
		for _, to := range tos {
			if !known[to] {
				t.Errorf("unknown order status %q reachable from %q", to, from)
			}
		}
	}

	knownD := make(map[DeliveryStatus]bool)
	for _, s := range allDeliveryStatuses {
		knownD[s] = true
	}
	for from, tos := range DeliveryTransitions {
		if !knownD[from] {
			t.Errorf("unknown delivery status %q in table", from)
		}
		for _, to := range tos {
			if !knownD[to] {
				t.Errorf("unknown delivery status %q reachable from %q", to, from)
			}
		}
	}

	// terminal states must be absent from the tables entirely
	for _, s := range []OrderStatus{OrderDelivered, OrderCancelled} {
		if _, ok := OrderTransitions[s]; ok {
			t.Errorf("terminal order status %q has outgoing transitions", s)
		}
	}
	if _, ok := DeliveryTransitions[DeliveryDelivered]; ok {
		t.Error("terminal delivery status has outgoing transitions")
	}
}

// TestCouplingTable checks that every delivery status past pending implies a
// well-defined order status.
func TestCouplingTable(t *testing.T) {
	cases := []struct {
		ds   DeliveryStatus
		want OrderStatus
	}{
		{DeliveryAssigned, OrderConfirmed},
		{DeliveryPickedUp, OrderPreparing},
		{DeliveryInTransit, OrderOutForDelivery},
		{DeliveryArrived, OrderOutForDelivery},
		{DeliveryDelivered, OrderDelivered},
		{DeliveryFailed, OrderFailed},
	}
	for _, tc := range cases {
		got, ok := CoupledOrderStatus(tc.ds)
		if !ok || got != tc.want {
			t.Errorf("CoupledOrderStatus(%s) = %s,%v, want %s", tc.ds, got, ok, tc.want)
		}
	}
	if _, ok := CoupledOrderStatus(DeliveryPending); ok {
		t.Error("pending delivery must not imply an order status")
	}
}

func strPtrOS(s OrderStatus) *OrderStatus       { return &s }
func strPtrDS(s DeliveryStatus) *DeliveryStatus { return &s }

func testOrder(customer types.ID, driver *types.ID, os OrderStatus, ds DeliveryStatus) *Order {
	return &Order{
		ID:             "o1",
		CustomerID:     customer,
		DriverID:       driver,
		OrderStatus:    os,
		DeliveryStatus: ds,
	}
}

func TestCheckTransitionPermission(t *testing.T) {
	d1 := types.ID("d1")

	cases := []struct {
		name    string
		order   *Order
		role    Role
		actor   types.ID
		reqOS   *OrderStatus
		reqDS   *DeliveryStatus
		allowed bool
	}{
		{"admin anything", testOrder("c1", nil, OrderPending, DeliveryPending), RoleAdmin, "a1", strPtrOS(OrderConfirmed), nil, true},
		{"admin delivery", testOrder("c1", &d1, OrderConfirmed, DeliveryAssigned), RoleAdmin, "a1", nil, strPtrDS(DeliveryPickedUp), true},

		{"driver own delivery", testOrder("c1", &d1, OrderConfirmed, DeliveryAssigned), RoleDriver, "d1", nil, strPtrDS(DeliveryPickedUp), true},
		{"driver other's order", testOrder("c1", &d1, OrderConfirmed, DeliveryAssigned), RoleDriver, "d2", nil, strPtrDS(DeliveryPickedUp), false},
		{"driver unassigned order", testOrder("c1", nil, OrderConfirmed, DeliveryPending), RoleDriver, "d1", nil, strPtrDS(DeliveryAssigned), false},
		{"driver order status", testOrder("c1", &d1, OrderConfirmed, DeliveryAssigned), RoleDriver, "d1", strPtrOS(OrderPreparing), nil, false},

		{"client cancel pending", testOrder("c1", nil, OrderPending, DeliveryPending), RoleClient, "c1", strPtrOS(OrderCancelled), nil, true},
		{"client cancel confirmed", testOrder("c1", nil, OrderConfirmed, DeliveryPending), RoleClient, "c1", strPtrOS(OrderCancelled), nil, true},
		{"client cancel too late", testOrder("c1", &d1, OrderPreparing, DeliveryPickedUp), RoleClient, "c1", strPtrOS(OrderCancelled), nil, false},
		{"client cancel other's order", testOrder("c1", nil, OrderPending, DeliveryPending), RoleClient, "c2", strPtrOS(OrderCancelled), nil, false},
		{"client non-cancel", testOrder("c1", nil, OrderPending, DeliveryPending), RoleClient, "c1", strPtrOS(OrderConfirmed), nil, false},
		{"client delivery status", testOrder("c1", &d1, OrderConfirmed, DeliveryAssigned), RoleClient, "c1", nil, strPtrDS(DeliveryPickedUp), false},

		{"vendor denied", testOrder("c1", nil, OrderPending, DeliveryPending), RoleVendor, "v1", strPtrOS(OrderConfirmed), nil, false},
		{"unknown role denied", testOrder("c1", nil, OrderPending, DeliveryPending), Role("guest"), "g1", strPtrOS(OrderCancelled), nil, false},
	}
	for _, tc := range cases {
		err := CheckTransitionPermission(tc.order, tc.role, tc.actor, tc.reqOS, tc.reqDS)
		if tc.allowed && err != nil {
			t.Errorf("%s: expected allowed, got %v", tc.name, err)
		}
		if !tc.allowed && err != ErrPermissionDenied {
			t.Errorf("%s: expected ErrPermissionDenied, got %v", tc.name, err)
		}
	}
}

// A client attempting any delivery-status transition must always be denied,
// whatever the statuses involved.
func TestClientNeverTouchesDelivery(t *testing.T) {
	d1 := types.ID("d1")
	for _, from := range allDeliveryStatuses {
		for _, to := range allDeliveryStatuses {
			o := testOrder("c1", &d1, OrderConfirmed, from)
			if err := CheckTransitionPermission(o, RoleClient, "c1", nil, &to); err != ErrPermissionDenied {
				t.Fatalf("client %s->%s: expected ErrPermissionDenied, got %v", from, to, err)
			}
		}
	}
}

func TestCanView(t *testing.T) {
	d1 := types.ID("d1")
	o := testOrder("c1", &d1, OrderConfirmed, DeliveryAssigned)

	cases := []struct {
		role  Role
		actor types.ID
		want  bool
	}{
		{RoleAdmin, "whoever", true},
		{RoleClient, "c1", true},
		{RoleClient, "c2", false},
		{RoleDriver, "d1", true},
		{RoleDriver, "d2", false},
		{RoleVendor, "v1", false},
	}
	for _, tc := range cases {
		if got := CanView(o, tc.role, tc.actor); got != tc.want {
			t.Errorf("CanView(%s, %s) = %v, want %v", tc.role, tc.actor, got, tc.want)
		}
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		status OrderStatus
		want   int
	}{
		{OrderPending, 1},
		{OrderConfirmed, 2},
		{OrderPreparing, 3},
		{OrderReadyForPickup, 4},
		{OrderOutForDelivery, 5},
		{OrderDelivered, 6},
		{OrderCancelled, 0},
		{OrderFailed, 0},
	}
	for _, tc := range cases {
		o := &Order{OrderStatus: tc.status}
		if got := o.Progress(); got != tc.want {
			t.Errorf("Progress(%s) = %d, want %d", tc.status, got, tc.want)
		}
		wantTerminal := tc.status == OrderDelivered || tc.status == OrderCancelled
		if got := o.Terminal(); got != wantTerminal {
			t.Errorf("Terminal(%s) = %v, want %v", tc.status, got, wantTerminal)
		}
	}
}
