// README: Order service: checkout, the transition engine, claims and tracking reads.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hmarket/internal/modules/notify"
	"hmarket/internal/modules/payment"
	"hmarket/internal/modules/pricing"
	"hmarket/internal/types"
)

const notifyTimeout = 5 * time.Second

type Service struct {
	store    *Store
	notifier notify.Notifier
	gateway  payment.Gateway
	log      *zap.Logger
}

func NewService(store *Store, notifier notify.Notifier, gateway payment.Gateway, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, gateway: gateway, log: log}
}

type ItemInput struct {
	ProductRef string
	Title      string
	UnitPrice  int64 // cents
	Quantity   int
}

type CheckoutCommand struct {
	CustomerID    types.ID
	Items         []ItemInput
	Address       Address
	Mode          DeliveryMode
	PaymentMethod string
	Discounts     int64
}

type AdvanceCommand struct {
	OrderID        types.ID
	Role           Role
	ActorID        types.ID
	OrderStatus    *OrderStatus
	DeliveryStatus *DeliveryStatus
	Note           string
	Location       *types.Point
	// DeliveryCode is optional on the delivered transition; it is recorded in
	// the tracking log but not enforced.
	DeliveryCode string
}

type CancelCommand struct {
	OrderID types.ID
	Role    Role
	ActorID types.ID
	Reason  string
}

type ClaimCommand struct {
	OrderID  types.ID
	DriverID types.ID
	ETA      *time.Time
}

// Checkout prices the cart, creates the order in its initial state and charges
// the payment gateway. A failed charge leaves the order pending with a failed
// payment; it is not an error from the caller's point of view.
func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (*Order, error) {
	if cmd.CustomerID == "" {
		return nil, fmt.Errorf("%w: missing customer", ErrValidation)
	}
	priceItems := make([]pricing.Item, len(cmd.Items))
	for i, it := range cmd.Items {
		priceItems[i] = pricing.Item{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	totals, err := pricing.Compute(priceItems, string(cmd.Mode), cmd.Discounts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now()
	o := &Order{
		ID:          types.ID(uuid.NewString()),
		OrderNumber: newOrderNumber(now),
		CustomerID:  cmd.CustomerID,
		Items:       make([]Item, len(cmd.Items)),
		Totals: Totals{
			Subtotal:    totals.Subtotal,
			DeliveryFee: totals.DeliveryFee,
			Taxes:       totals.Taxes,
			Discounts:   totals.Discounts,
			Total:       totals.Total,
			Currency:    totals.Currency,
		},
		Payment: Payment{
			Method: cmd.PaymentMethod,
			Status: PaymentPending,
			Amount: totals.Total,
		},
		Address:        cmd.Address,
		Mode:           cmd.Mode,
		OrderStatus:    OrderPending,
		DeliveryStatus: DeliveryPending,
		DeliveryCode:   newDeliveryCode(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, it := range cmd.Items {
		o.Items[i] = Item{
			ProductRef: it.ProductRef,
			Title:      it.Title,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			LineTotal:  it.UnitPrice * int64(it.Quantity),
		}
	}

	for attempt := 0; ; attempt++ {
		err := s.store.Create(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, errDuplicateOrderNumber) && attempt < 3 {
			o.OrderNumber = newOrderNumber(now)
			continue
		}
		return nil, err
	}
	s.appendTracking(ctx, &TrackingEntry{
		OrderID:        o.ID,
		OrderStatus:    o.OrderStatus,
		DeliveryStatus: o.DeliveryStatus,
		ActorRole:      RoleClient,
		ActorID:        &cmd.CustomerID,
		Note:           "order placed",
		CreatedAt:      now,
	})

	s.chargePayment(ctx, o)

	s.dispatch(o.CustomerID, notify.Notification{
		Type:    "order_created",
		Title:   "Commande enregistrée",
		Message: fmt.Sprintf("Votre commande %s a été enregistrée.", o.OrderNumber),
		Data:    map[string]any{"order_id": string(o.ID), "order_number": o.OrderNumber},
	})
	return o, nil
}

func (s *Service) chargePayment(ctx context.Context, o *Order) {
	if s.gateway == nil {
		return
	}
	res, err := s.gateway.Charge(ctx, o.ID, types.Money{Amount: o.Payment.Amount, Currency: o.Totals.Currency})
	status := PaymentSucceeded
	var paidAt *time.Time
	if err != nil || !res.Succeeded {
		if err != nil {
			s.log.Warn("payment charge failed", zap.String("order_id", string(o.ID)), zap.Error(err))
		}
		status = PaymentFailed
	} else {
		now := time.Now()
		paidAt = &now
	}
	if err := s.store.UpdatePayment(ctx, o.ID, status, paidAt); err != nil {
		s.log.Error("record payment outcome", zap.String("order_id", string(o.ID)), zap.Error(err))
		return
	}
	o.Payment.Status = status
	o.Payment.PaidAt = paidAt
}

// Advance validates and applies a requested transition. Delivery-status moves
// carry their coupled order status with them; direct order-status moves follow
// the order table. Exactly one concurrent writer wins the underlying CAS.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) (*Order, error) {
	if cmd.OrderStatus == nil && cmd.DeliveryStatus == nil {
		return nil, fmt.Errorf("%w: no transition requested", ErrValidation)
	}

	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransitionPermission(o, cmd.Role, cmd.ActorID, cmd.OrderStatus, cmd.DeliveryStatus); err != nil {
		return nil, err
	}

	targetOrder := o.OrderStatus
	targetDelivery := o.DeliveryStatus

	if cmd.DeliveryStatus != nil {
		to := *cmd.DeliveryStatus
		if !CanTransitionDelivery(o.DeliveryStatus, to) {
			return nil, transitionError("delivery", string(o.DeliveryStatus), string(to))
		}
		coupled, ok := CoupledOrderStatus(to)
		if !ok {
			return nil, transitionError("delivery", string(o.DeliveryStatus), string(to))
		}
		if cmd.OrderStatus != nil && *cmd.OrderStatus != coupled {
			return nil, transitionError("order", string(o.OrderStatus), string(*cmd.OrderStatus))
		}
		targetDelivery = to
		targetOrder = coupled
	} else {
		to := *cmd.OrderStatus
		if !CanTransitionOrder(o.OrderStatus, to) {
			return nil, transitionError("order", string(o.OrderStatus), string(to))
		}
		if to == OrderCancelled {
			return s.cancel(ctx, o, cmd)
		}
		// An active courier leg pins the order status to its coupled value;
		// direct moves that contradict it are invalid. A pending or failed leg
		// leaves the order free to move (initial flow, courier-less redo).
		if o.DeliveryStatus != DeliveryPending && o.DeliveryStatus != DeliveryFailed {
			if coupled, ok := CoupledOrderStatus(o.DeliveryStatus); ok && to != coupled {
				return nil, transitionError("order", string(o.OrderStatus), string(to))
			}
		}
		targetOrder = to
	}

	ok, err := s.store.UpdateStatus(ctx, o.ID, o.OrderStatus, targetOrder, o.DeliveryStatus, targetDelivery, o.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	now := time.Now()
	o.OrderStatus = targetOrder
	o.DeliveryStatus = targetDelivery
	o.StatusVersion++
	o.UpdatedAt = now
	if targetDelivery == DeliveryPickedUp && o.PickupTime == nil {
		o.PickupTime = &now
	}
	if targetDelivery == DeliveryDelivered && o.ActualDeliveryTime == nil {
		o.ActualDeliveryTime = &now
	}

	note := cmd.Note
	if targetDelivery == DeliveryDelivered && cmd.DeliveryCode != "" {
		note = strings.TrimSpace(note + " (code " + cmd.DeliveryCode + ")")
	}
	actorID := cmd.ActorID
	s.appendTracking(ctx, &TrackingEntry{
		OrderID:        o.ID,
		OrderStatus:    targetOrder,
		DeliveryStatus: targetDelivery,
		ActorRole:      cmd.Role,
		ActorID:        &actorID,
		Note:           note,
		Location:       cmd.Location,
		CreatedAt:      now,
	})

	s.notifyTransition(o, cmd.Role)
	return o, nil
}

// cancel terminates the order and releases the courier. The delivery leg is
// reset to pending so a voided assignment never lingers on a dead order.
func (s *Service) cancel(ctx context.Context, o *Order, cmd AdvanceCommand) (*Order, error) {
	releasedDriver := o.DriverID

	ok, err := s.store.CancelOrder(ctx, o.ID, o.OrderStatus, o.DeliveryStatus, o.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	now := time.Now()
	o.OrderStatus = OrderCancelled
	o.DeliveryStatus = DeliveryPending
	o.DriverID = nil
	o.StatusVersion++
	o.UpdatedAt = now

	if o.Payment.Status == PaymentSucceeded {
		if err := s.store.UpdatePayment(ctx, o.ID, PaymentRefunded, nil); err != nil {
			s.log.Error("mark refund", zap.String("order_id", string(o.ID)), zap.Error(err))
		} else {
			o.Payment.Status = PaymentRefunded
		}
	}

	actorID := cmd.ActorID
	s.appendTracking(ctx, &TrackingEntry{
		OrderID:        o.ID,
		OrderStatus:    OrderCancelled,
		DeliveryStatus: DeliveryPending,
		ActorRole:      cmd.Role,
		ActorID:        &actorID,
		Note:           cmd.Note,
		CreatedAt:      now,
	})

	s.dispatch(o.CustomerID, orderUpdateNotification(o))
	if releasedDriver != nil {
		s.dispatch(*releasedDriver, notify.Notification{
			Type:    "delivery_cancelled",
			Title:   "Course annulée",
			Message: fmt.Sprintf("La commande %s a été annulée.", o.OrderNumber),
			Data:    map[string]any{"order_id": string(o.ID)},
		})
	}
	return o, nil
}

// Cancel is the shorthand for requesting orderStatus -> cancelled.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	to := OrderCancelled
	return s.Advance(ctx, AdvanceCommand{
		OrderID:     cmd.OrderID,
		Role:        cmd.Role,
		ActorID:     cmd.ActorID,
		OrderStatus: &to,
		Note:        cmd.Reason,
	})
}

// Claim atomically assigns an unclaimed order to a driver. Of N racing
// drivers exactly one succeeds; the rest see ErrAlreadyAssigned.
func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.DeliveryStatus == DeliveryDelivered {
		return nil, ErrAlreadyDelivered
	}
	if o.DriverID != nil && o.DeliveryStatus != DeliveryPending {
		return nil, ErrAlreadyAssigned
	}
	if o.OrderStatus == OrderCancelled {
		return nil, transitionError("delivery", string(o.DeliveryStatus), string(DeliveryAssigned))
	}

	ok, err := s.store.Claim(ctx, o.ID, cmd.DriverID, cmd.ETA)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone beat us to it; re-read to tell why.
		cur, err := s.store.Get(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if cur.DriverID != nil {
			return nil, ErrAlreadyAssigned
		}
		return nil, ErrConflict
	}

	now := time.Now()
	driverID := cmd.DriverID
	o.DriverID = &driverID
	o.OrderStatus = OrderConfirmed
	o.DeliveryStatus = DeliveryAssigned
	o.StatusVersion++
	o.AssignedAt = &now
	o.UpdatedAt = now
	if cmd.ETA != nil {
		o.EstimatedDeliveryTime = cmd.ETA
	}

	s.appendTracking(ctx, &TrackingEntry{
		OrderID:        o.ID,
		OrderStatus:    o.OrderStatus,
		DeliveryStatus: o.DeliveryStatus,
		ActorRole:      RoleDriver,
		ActorID:        &driverID,
		Note:           "delivery accepted",
		CreatedAt:      now,
	})

	s.dispatch(o.CustomerID, notify.Notification{
		Type:    "driver_assigned",
		Title:   "Livreur en route",
		Message: fmt.Sprintf("Un livreur a pris en charge votre commande %s.", o.OrderNumber),
		Data:    map[string]any{"order_id": string(o.ID), "driver_id": string(driverID)},
	})
	s.dispatch(driverID, notify.Notification{
		Type:    "delivery_assigned",
		Title:   "Course acceptée",
		Message: fmt.Sprintf("Commande %s à livrer.", o.OrderNumber),
		Data: map[string]any{
			"order_id":      string(o.ID),
			"delivery_code": o.DeliveryCode,
		},
	})
	return o, nil
}

// Get returns an order the actor is allowed to see.
func (s *Service) Get(ctx context.Context, id types.ID, role Role, actorID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(o, role, actorID) {
		return nil, ErrPermissionDenied
	}
	return o, nil
}

// Tracking returns the order and its append-only history for tracking views.
func (s *Service) Tracking(ctx context.Context, id types.ID, role Role, actorID types.ID) (*Order, []TrackingEntry, error) {
	o, err := s.Get(ctx, id, role, actorID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.store.ListTracking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, entries, nil
}

// ListForActor returns the orders visible to an actor: own orders for a
// client, assignments for a driver, everything for an admin.
func (s *Service) ListForActor(ctx context.Context, role Role, actorID types.ID, limit int) ([]*Order, error) {
	switch role {
	case RoleClient:
		return s.store.ListByCustomer(ctx, actorID)
	case RoleDriver:
		return s.store.ListByDriver(ctx, actorID)
	case RoleAdmin:
		return s.store.ListAll(ctx, limit)
	default:
		return nil, ErrPermissionDenied
	}
}

// Peek returns an order without visibility checks. Internal callers only;
// everything user-facing goes through Get.
func (s *Service) Peek(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// ListUnassigned exposes claimable orders for the assignment service.
func (s *Service) ListUnassigned(ctx context.Context, limit int) ([]*Order, error) {
	return s.store.ListUnassigned(ctx, limit)
}

// RecordDriverLocation stores the courier's position on their active order and
// appends a tracking point while the order is on the road.
func (s *Service) RecordDriverLocation(ctx context.Context, orderID, driverID types.ID, p types.Point) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DriverID == nil || *o.DriverID != driverID {
		return ErrPermissionDenied
	}
	ok, err := s.store.UpdateLocation(ctx, orderID, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order is not out for delivery", ErrValidation)
	}
	if o.DeliveryStatus == DeliveryInTransit {
		loc := p
		s.appendTracking(ctx, &TrackingEntry{
			OrderID:        o.ID,
			OrderStatus:    o.OrderStatus,
			DeliveryStatus: o.DeliveryStatus,
			ActorRole:      RoleDriver,
			ActorID:        &driverID,
			Note:           "position update",
			Location:       &loc,
			CreatedAt:      time.Now(),
		})
	}
	return nil
}

func (s *Service) appendTracking(ctx context.Context, e *TrackingEntry) {
	if err := s.store.AppendTracking(ctx, e); err != nil {
		s.log.Error("append tracking entry",
			zap.String("order_id", string(e.OrderID)),
			zap.Error(err))
	}
}

// notifyTransition fans out the standard per-transition notifications:
// customer always, the courier on admin overrides, admins on failures.
func (s *Service) notifyTransition(o *Order, actor Role) {
	s.dispatch(o.CustomerID, orderUpdateNotification(o))
	if o.DriverID != nil && actor == RoleAdmin {
		s.dispatch(*o.DriverID, notify.Notification{
			Type:    "delivery_update",
			Title:   "Commande mise à jour",
			Message: fmt.Sprintf("La commande %s est passée à %s.", o.OrderNumber, o.OrderStatus),
			Data:    map[string]any{"order_id": string(o.ID)},
		})
	}
	if o.OrderStatus == OrderFailed {
		s.dispatch(notify.AdminAudience, notify.Notification{
			Type:    "delivery_failed",
			Title:   "Échec de livraison",
			Message: fmt.Sprintf("La livraison de la commande %s a échoué.", o.OrderNumber),
			Data:    map[string]any{"order_id": string(o.ID)},
		})
	}
}

// dispatch is fire-and-forget: the transition is durable before any
// notification goes out, and a failed send only produces a log line.
func (s *Service) dispatch(userID types.ID, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, userID, n); err != nil {
			s.log.Warn("notification failed",
				zap.String("user_id", string(userID)),
				zap.String("type", n.Type),
				zap.Error(err))
		}
	}()
}

func orderUpdateNotification(o *Order) notify.Notification {
	return notify.Notification{
		Type:    "order_update",
		Title:   "Commande mise à jour",
		Message: fmt.Sprintf("Votre commande %s est maintenant %s.", o.OrderNumber, o.OrderStatus),
		Data: map[string]any{
			"order_id":        string(o.ID),
			"order_status":    string(o.OrderStatus),
			"delivery_status": string(o.DeliveryStatus),
			"progress":        o.Progress(),
		},
	}
}

// newOrderNumber builds the human-readable code, e.g. HM-20260115-4F2A9C.
func newOrderNumber(t time.Time) string {
	const hexDigits = "0123456789ABCDEF"
	var b [6]byte
	_, _ = rand.Read(b[:])
	suffix := make([]byte, 6)
	for i, c := range b {
		suffix[i] = hexDigits[int(c)%len(hexDigits)]
	}
	return fmt.Sprintf("HM-%s-%s", t.Format("20060102"), suffix)
}

// newDeliveryCode returns the 6-digit code shown to the customer at handoff.
func newDeliveryCode() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	code := make([]byte, 6)
	for i, c := range b {
		code[i] = '0' + c%10
	}
	return string(code)
}
