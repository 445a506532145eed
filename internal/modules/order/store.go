// README: Order store backed by PostgreSQL; all status moves are conditional updates.
package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hmarket/internal/types"
)

// errDuplicateOrderNumber signals a generated order number collided with an
// existing row; the caller regenerates and retries.
var errDuplicateOrderNumber = errors.New("duplicate order number")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, order_number, customer_id, items,
	subtotal, delivery_fee, taxes, discounts, total, currency,
	payment_method, payment_status, payment_amount, paid_at,
	addr_line1, addr_line2, addr_city, addr_postal_code, addr_lat, addr_lng,
	delivery_mode, order_status, delivery_status, status_version,
	driver_id, delivery_code,
	estimated_delivery_time, assigned_at, pickup_time, actual_delivery_time,
	cur_lat, cur_lng, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return storageError(err)
	}
	var addrLat, addrLng *float64
	if o.Address.Location != nil {
		addrLat, addrLng = &o.Address.Location.Lat, &o.Address.Location.Lng
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, customer_id, items,
			subtotal, delivery_fee, taxes, discounts, total, currency,
			payment_method, payment_status, payment_amount, paid_at,
			addr_line1, addr_line2, addr_city, addr_postal_code, addr_lat, addr_lng,
			delivery_mode, order_status, delivery_status, status_version,
			driver_id, delivery_code, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $27
		)`,
		string(o.ID), o.OrderNumber, string(o.CustomerID), items,
		o.Totals.Subtotal, o.Totals.DeliveryFee, o.Totals.Taxes, o.Totals.Discounts, o.Totals.Total, o.Totals.Currency,
		o.Payment.Method, string(o.Payment.Status), o.Payment.Amount, o.Payment.PaidAt,
		o.Address.Line1, o.Address.Line2, o.Address.City, o.Address.PostalCode, addrLat, addrLng,
		string(o.Mode), string(o.OrderStatus), string(o.DeliveryStatus), o.StatusVersion,
		idPtrToString(o.DriverID), o.DeliveryCode, o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key" {
			return errDuplicateOrderNumber
		}
		return storageError(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError(err)
	}
	return o, nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, string(customerID))
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE driver_id = $1 ORDER BY created_at DESC`, string(driverID))
}

func (s *Store) ListAll(ctx context.Context, limit int) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListUnassigned returns claimable work: confirmed or ready orders with no
// courier attached yet.
func (s *Store) ListUnassigned(ctx context.Context, limit int) ([]*Order, error) {
	return s.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_status IN ('confirmed', 'ready_for_pickup')
		  AND delivery_status = 'pending'
		  AND driver_id IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageError(err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return out, nil
}

// UpdateStatus moves both status fields in one compare-and-swap keyed on the
// current statuses and version. Time stamps derived from the new state are set
// in the same statement. Returns false when another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, fromOrder, toOrder OrderStatus, fromDelivery, toDelivery DeliveryStatus, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET order_status = $1,
		    delivery_status = $2,
		    status_version = status_version + 1,
		    updated_at = NOW(),
		    pickup_time = CASE WHEN $2 = 'picked_up' AND pickup_time IS NULL THEN NOW() ELSE pickup_time END,
		    actual_delivery_time = CASE WHEN $2 = 'delivered' AND actual_delivery_time IS NULL THEN NOW() ELSE actual_delivery_time END
		WHERE id = $3 AND order_status = $4 AND delivery_status = $5 AND status_version = $6`,
		string(toOrder), string(toDelivery),
		string(id), string(fromOrder), string(fromDelivery), version,
	)
	if err != nil {
		return false, storageError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Claim atomically attaches a driver to an unclaimed order. Exactly one of any
// number of racing drivers can win: the WHERE clause only matches while the
// delivery leg is still pending and no driver is set.
func (s *Store) Claim(ctx context.Context, id, driverID types.ID, eta *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET driver_id = $2,
		    delivery_status = 'assigned',
		    order_status = 'confirmed',
		    status_version = status_version + 1,
		    assigned_at = NOW(),
		    updated_at = NOW(),
		    estimated_delivery_time = COALESCE($3, estimated_delivery_time)
		WHERE id = $1
		  AND delivery_status = 'pending'
		  AND driver_id IS NULL
		  AND order_status NOT IN ('delivered', 'cancelled')`,
		string(id), string(driverID), eta,
	)
	if err != nil {
		return false, storageError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelOrder terminates the order and releases any attached courier in one
// compare-and-swap. The delivery leg goes back to pending so the coupling
// between the two status fields stays intact on the terminal state.
func (s *Store) CancelOrder(ctx context.Context, id types.ID, fromOrder OrderStatus, fromDelivery DeliveryStatus, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET order_status = 'cancelled',
		    delivery_status = 'pending',
		    driver_id = NULL,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND order_status = $2 AND delivery_status = $3 AND status_version = $4`,
		string(id), string(fromOrder), string(fromDelivery), version,
	)
	if err != nil {
		return false, storageError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdatePayment(ctx context.Context, id types.ID, status PaymentStatus, paidAt *time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE id = $1`,
		string(id), string(status), paidAt,
	)
	if err != nil {
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, p types.Point) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET cur_lat = $2, cur_lng = $3, updated_at = NOW()
		WHERE id = $1 AND delivery_status IN ('picked_up', 'in_transit', 'arrived')`,
		string(id), p.Lat, p.Lng,
	)
	if err != nil {
		return false, storageError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendTracking(ctx context.Context, e *TrackingEntry) error {
	var lat, lng *float64
	if e.Location != nil {
		lat, lng = &e.Location.Lat, &e.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_tracking_events (
			order_id, order_status, delivery_status, actor_role, actor_id, note, lat, lng, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(e.OrderID), string(e.OrderStatus), string(e.DeliveryStatus),
		string(e.ActorRole), idPtrToString(e.ActorID), e.Note, lat, lng, e.CreatedAt,
	)
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *Store) ListTracking(ctx context.Context, orderID types.ID) ([]TrackingEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, order_status, delivery_status, actor_role, actor_id, note, lat, lng, created_at
		FROM order_tracking_events
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`, string(orderID))
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	var out []TrackingEntry
	for rows.Next() {
		var e TrackingEntry
		var actorID sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.OrderID, &e.OrderStatus, &e.DeliveryStatus, &e.ActorRole, &actorID, &e.Note, &lat, &lng, &e.CreatedAt); err != nil {
			return nil, storageError(err)
		}
		if actorID.Valid {
			id := types.ID(actorID.String)
			e.ActorID = &id
		}
		if lat.Valid && lng.Valid {
			e.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var items []byte
	var paidAt, eta, assignedAt, pickupTime, deliveredAt sql.NullTime
	var driverID sql.NullString
	var addrLat, addrLng, curLat, curLng sql.NullFloat64

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &items,
		&o.Totals.Subtotal, &o.Totals.DeliveryFee, &o.Totals.Taxes, &o.Totals.Discounts, &o.Totals.Total, &o.Totals.Currency,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.Amount, &paidAt,
		&o.Address.Line1, &o.Address.Line2, &o.Address.City, &o.Address.PostalCode, &addrLat, &addrLng,
		&o.Mode, &o.OrderStatus, &o.DeliveryStatus, &o.StatusVersion,
		&driverID, &o.DeliveryCode,
		&eta, &assignedAt, &pickupTime, &deliveredAt,
		&curLat, &curLng, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	if addrLat.Valid && addrLng.Valid {
		o.Address.Location = &types.Point{Lat: addrLat.Float64, Lng: addrLng.Float64}
	}
	if curLat.Valid && curLng.Valid {
		o.CurrentLocation = &types.Point{Lat: curLat.Float64, Lng: curLng.Float64}
	}
	o.Payment.PaidAt = toTimePtr(paidAt)
	o.EstimatedDeliveryTime = toTimePtr(eta)
	o.AssignedAt = toTimePtr(assignedAt)
	o.PickupTime = toTimePtr(pickupTime)
	o.ActualDeliveryTime = toTimePtr(deliveredAt)
	return &o, nil
}

func idPtrToString(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
