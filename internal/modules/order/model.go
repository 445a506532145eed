// README: Order aggregate, status definitions and the transition tables.
package order

import (
	"time"

	"hmarket/internal/types"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderFailed         OrderStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryArrived   DeliveryStatus = "arrived"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type DeliveryMode string

const (
	ModePlanned    DeliveryMode = "planned"
	ModeExpress    DeliveryMode = "express"
	ModeOutsideIDF DeliveryMode = "outside_idf"
)

type Role string

const (
	RoleClient Role = "client"
	RoleDriver Role = "livreur"
	RoleAdmin  Role = "admin"
	RoleVendor Role = "vendeur"
)

// OrderTransitions is the single source of truth for the order lifecycle.
var OrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderConfirmed, OrderCancelled},
	OrderConfirmed:      {OrderPreparing, OrderCancelled},
	OrderPreparing:      {OrderReadyForPickup, OrderCancelled},
	OrderReadyForPickup: {OrderOutForDelivery, OrderCancelled},
	OrderOutForDelivery: {OrderDelivered, OrderFailed},
	OrderFailed:         {OrderPreparing},
}

// DeliveryTransitions is the single source of truth for the courier leg.
var DeliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:   {DeliveryAssigned},
	DeliveryAssigned:  {DeliveryPickedUp},
	DeliveryPickedUp:  {DeliveryInTransit},
	DeliveryInTransit: {DeliveryArrived},
	DeliveryArrived:   {DeliveryDelivered, DeliveryFailed},
	DeliveryFailed:    {DeliveryAssigned},
}

// coupledOrderStatus gives the order status implied by each delivery status.
// Delivery-driven transitions always set the coupled value, so the two fields
// can never drift apart. A delivery retry (failed -> assigned) lands the order
// back on confirmed; the order table's failed -> preparing edge covers the
// admin-driven redo without a courier.
var coupledOrderStatus = map[DeliveryStatus]OrderStatus{
	DeliveryAssigned:  OrderConfirmed,
	DeliveryPickedUp:  OrderPreparing,
	DeliveryInTransit: OrderOutForDelivery,
	DeliveryArrived:   OrderOutForDelivery,
	DeliveryDelivered: OrderDelivered,
	DeliveryFailed:    OrderFailed,
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, s := range OrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionDelivery(from, to DeliveryStatus) bool {
	for _, s := range DeliveryTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CoupledOrderStatus returns the order status implied by a delivery status.
func CoupledOrderStatus(ds DeliveryStatus) (OrderStatus, bool) {
	os, ok := coupledOrderStatus[ds]
	return os, ok
}

type Item struct {
	ProductRef string
	Title      string
	UnitPrice  int64 // cents
	Quantity   int
	LineTotal  int64 // cents
}

type Totals struct {
	Subtotal    int64
	DeliveryFee int64
	Taxes       int64
	Discounts   int64
	Total       int64
	Currency    string
}

type Payment struct {
	Method string
	Status PaymentStatus
	Amount int64 // cents
	PaidAt *time.Time
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	PostalCode string
	// Location is an optional geocoded position, supplied by the caller when
	// known. Geocoding itself is not this service's concern.
	Location *types.Point
}

type Order struct {
	ID          types.ID
	OrderNumber string
	CustomerID  types.ID
	Items       []Item
	Totals      Totals
	Payment     Payment
	Address     Address
	Mode        DeliveryMode

	OrderStatus    OrderStatus
	DeliveryStatus DeliveryStatus
	StatusVersion  int

	DriverID     *types.ID
	DeliveryCode string

	EstimatedDeliveryTime *time.Time
	AssignedAt            *time.Time
	PickupTime            *time.Time
	ActualDeliveryTime    *time.Time
	CurrentLocation       *types.Point

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackingEntry is one append-only line of the order's history.
type TrackingEntry struct {
	ID             int64
	OrderID        types.ID
	OrderStatus    OrderStatus
	DeliveryStatus DeliveryStatus
	ActorRole      Role
	ActorID        *types.ID
	Note           string
	Location       *types.Point
	CreatedAt      time.Time
}

var progressSteps = map[OrderStatus]int{
	OrderPending:        1,
	OrderConfirmed:      2,
	OrderPreparing:      3,
	OrderReadyForPickup: 4,
	OrderOutForDelivery: 5,
	OrderDelivered:      6,
}

// ProgressSteps is the length of the happy path.
const ProgressSteps = 6

// Progress returns the step index of the order on the 6-step happy path,
// or 0 for cancelled/failed orders.
func (o *Order) Progress() int {
	return progressSteps[o.OrderStatus]
}

// Terminal reports whether the order can no longer change.
func (o *Order) Terminal() bool {
	return o.OrderStatus == OrderDelivered || o.OrderStatus == OrderCancelled
}
