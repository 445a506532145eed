// README: Assignment service: driver acceptance and the available-orders feed.
package assignment

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"hmarket/internal/maps"
	"hmarket/internal/modules/order"
	"hmarket/internal/types"
)

// Orders is the slice of the order service this module needs.
type Orders interface {
	Claim(ctx context.Context, cmd order.ClaimCommand) (*order.Order, error)
	ListUnassigned(ctx context.Context, limit int) ([]*order.Order, error)
	Peek(ctx context.Context, id types.ID) (*order.Order, error)
}

// Directory answers availability and position questions about drivers.
type Directory interface {
	IsAvailable(ctx context.Context, id types.ID) (bool, error)
	Position(ctx context.Context, id types.ID) (*types.Point, error)
}

type Service struct {
	orders    Orders
	directory Directory
	estimator maps.Estimator
	listLimit int
	log       *zap.Logger
}

func NewService(orders Orders, directory Directory, estimator maps.Estimator, listLimit int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if listLimit <= 0 {
		listLimit = 50
	}
	return &Service{orders: orders, directory: directory, estimator: estimator, listLimit: listLimit, log: log}
}

// Accept lets a driver claim an unassigned order. Availability is checked
// first; the claim itself is a single conditional write, so concurrent
// accepts resolve to exactly one winner.
func (s *Service) Accept(ctx context.Context, orderID, driverID types.ID) (*order.Order, error) {
	// Order problems (missing, already delivered or claimed) outrank driver
	// problems; the claim itself re-verifies against the live row.
	o, err := s.orders.Peek(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DeliveryStatus == order.DeliveryDelivered {
		return nil, order.ErrAlreadyDelivered
	}
	if o.DriverID != nil && o.DeliveryStatus != order.DeliveryPending {
		return nil, order.ErrAlreadyAssigned
	}
	available, err := s.directory.IsAvailable(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, order.ErrDriverUnavailable
	}

	eta := s.estimateDeliveryTime(ctx, orderID, driverID)
	return s.orders.Claim(ctx, order.ClaimCommand{OrderID: orderID, DriverID: driverID, ETA: eta})
}

// AvailableOrder is one entry of the driver's work feed.
type AvailableOrder struct {
	Order      *order.Order
	DistanceKm float64 // 0 when unknown
}

// ListAvailable returns unclaimed orders, nearest first when the driver's
// position and the order's address coordinates are known. Distance is
// best-effort; estimation problems never hide work from drivers.
func (s *Service) ListAvailable(ctx context.Context, driverID types.ID) ([]AvailableOrder, error) {
	orders, err := s.orders.ListUnassigned(ctx, s.listLimit)
	if err != nil {
		return nil, err
	}

	pos, err := s.directory.Position(ctx, driverID)
	if err != nil {
		s.log.Warn("driver position lookup failed", zap.String("driver_id", string(driverID)), zap.Error(err))
		pos = nil
	}

	out := make([]AvailableOrder, len(orders))
	for i, o := range orders {
		out[i] = AvailableOrder{Order: o}
		if pos != nil && o.Address.Location != nil {
			out[i].DistanceKm = s.distanceKm(ctx, *pos, *o.Address.Location)
		}
	}
	if pos != nil {
		sort.SliceStable(out, func(i, j int) bool {
			di, dj := out[i].DistanceKm, out[j].DistanceKm
			if di == 0 || dj == 0 {
				// unknown distances keep their creation-time order, after known ones
				return di != 0
			}
			return di < dj
		})
	}
	return out, nil
}

func (s *Service) distanceKm(ctx context.Context, from, to types.Point) float64 {
	if s.estimator != nil {
		if est, err := s.estimator.Estimate(ctx, from, to); err == nil {
			return est.DistanceKm
		}
	}
	return maps.HaversineKm(from, to)
}

// estimateDeliveryTime projects an ETA from the driver's position to the
// delivery address. Nil when either coordinate is unknown.
func (s *Service) estimateDeliveryTime(ctx context.Context, orderID, driverID types.ID) *time.Time {
	if s.estimator == nil {
		return nil
	}
	pos, err := s.directory.Position(ctx, driverID)
	if err != nil || pos == nil {
		return nil
	}
	o, err := s.orders.Peek(ctx, orderID)
	if err != nil || o.Address.Location == nil {
		return nil
	}
	est, err := s.estimator.Estimate(ctx, *pos, *o.Address.Location)
	if err != nil {
		s.log.Warn("eta estimation failed", zap.String("order_id", string(orderID)), zap.Error(err))
		return nil
	}
	eta := time.Now().Add(est.Duration)
	return &eta
}
