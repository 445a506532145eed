// README: Order handlers for checkout, reads, tracking and transitions.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hmarket/internal/http/middleware"
	"hmarket/internal/modules/driver"
	"hmarket/internal/modules/order"
	"hmarket/internal/types"
)

type OrderHandler struct {
	order   *order.Service
	drivers *driver.Store
}

func NewOrderHandler(svc *order.Service, drivers *driver.Store) *OrderHandler {
	return &OrderHandler{order: svc, drivers: drivers}
}

type itemReq struct {
	ProductRef string `json:"product_ref"`
	Title      string `json:"title"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

type addressReq struct {
	Line1      string   `json:"line1"`
	Line2      string   `json:"line2"`
	City       string   `json:"city"`
	PostalCode string   `json:"postal_code"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
}

type createOrderReq struct {
	Items         []itemReq  `json:"items"`
	Address       addressReq `json:"address"`
	Mode          string     `json:"mode"`
	PaymentMethod string     `json:"payment_method"`
	Discounts     int64      `json:"discounts"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	role := middleware.CallerRole(c)
	if role != string(order.RoleClient) && role != string(order.RoleAdmin) {
		writeError(c, http.StatusForbidden, "only clients can place orders")
		return
	}
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{
			ProductRef: it.ProductRef,
			Title:      it.Title,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		}
	}
	addr := order.Address{
		Line1:      req.Address.Line1,
		Line2:      req.Address.Line2,
		City:       req.Address.City,
		PostalCode: req.Address.PostalCode,
	}
	if req.Address.Lat != nil && req.Address.Lng != nil {
		addr.Location = &types.Point{Lat: *req.Address.Lat, Lng: *req.Address.Lng}
	}
	o, err := h.order.Checkout(c.Request.Context(), order.CheckoutCommand{
		CustomerID:    types.ID(middleware.CallerUID(c)),
		Items:         items,
		Address:       addr,
		Mode:          order.DeliveryMode(req.Mode),
		PaymentMethod: req.PaymentMethod,
		Discounts:     req.Discounts,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, orderView(o))
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.order.ListForActor(
		c.Request.Context(),
		order.Role(middleware.CallerRole(c)),
		types.ID(middleware.CallerUID(c)),
		100,
	)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	views := make([]gin.H, len(orders))
	for i, o := range orders {
		views[i] = orderView(o)
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": views})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(
		c.Request.Context(),
		types.ID(id),
		order.Role(middleware.CallerRole(c)),
		types.ID(middleware.CallerUID(c)),
	)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (h *OrderHandler) Tracking(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, entries, err := h.order.Tracking(
		c.Request.Context(),
		types.ID(id),
		order.Role(middleware.CallerRole(c)),
		types.ID(middleware.CallerUID(c)),
	)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	var info *driver.Info
	if o.DriverID != nil && h.drivers != nil {
		// Courier info is best-effort; a directory miss never hides tracking.
		info, _ = h.drivers.Get(c.Request.Context(), *o.DriverID)
	}
	writeJSON(c, http.StatusOK, trackingResponse(o, entries, info))
}

type transitionReq struct {
	OrderStatus    string   `json:"order_status"`
	DeliveryStatus string   `json:"delivery_status"`
	Note           string   `json:"note"`
	DeliveryCode   string   `json:"delivery_code"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
}

func (h *OrderHandler) Transition(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := order.AdvanceCommand{
		OrderID:      types.ID(id),
		Role:         order.Role(middleware.CallerRole(c)),
		ActorID:      types.ID(middleware.CallerUID(c)),
		Note:         req.Note,
		DeliveryCode: req.DeliveryCode,
	}
	if req.OrderStatus != "" {
		os := order.OrderStatus(req.OrderStatus)
		cmd.OrderStatus = &os
	}
	if req.DeliveryStatus != "" {
		ds := order.DeliveryStatus(req.DeliveryStatus)
		cmd.DeliveryStatus = &ds
	}
	if req.Lat != nil && req.Lng != nil {
		cmd.Location = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	o, err := h.order.Advance(c.Request.Context(), cmd)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req) // body is optional
	o, err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(id),
		Role:    order.Role(middleware.CallerRole(c)),
		ActorID: types.ID(middleware.CallerUID(c)),
		Reason:  req.Reason,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func trackingResponse(o *order.Order, entries []order.TrackingEntry, info *driver.Info) gin.H {
	views := make([]gin.H, len(entries))
	for i, e := range entries {
		views[i] = trackingView(e)
	}
	resp := gin.H{
		"order":    orderView(o),
		"progress": gin.H{"step": o.Progress(), "of": order.ProgressSteps, "terminal": o.Terminal()},
		"events":   views,
	}
	if info != nil {
		resp["driver"] = driverView(info)
	}
	return resp
}

func driverView(info *driver.Info) gin.H {
	v := gin.H{
		"id":        info.ID,
		"available": info.IsAvailable,
	}
	if info.Zone != "" {
		v["zone"] = info.Zone
	}
	if info.Position != nil {
		v["position"] = gin.H{"lat": info.Position.Lat, "lng": info.Position.Lng}
	}
	if !info.UpdatedAt.IsZero() {
		v["updated_at"] = info.UpdatedAt.Format(time.RFC3339)
	}
	return v
}

func orderView(o *order.Order) gin.H {
	items := make([]gin.H, len(o.Items))
	for i, it := range o.Items {
		items[i] = gin.H{
			"product_ref": it.ProductRef,
			"title":       it.Title,
			"unit_price":  it.UnitPrice,
			"quantity":    it.Quantity,
			"line_total":  it.LineTotal,
		}
	}
	v := gin.H{
		"id":              o.ID,
		"order_number":    o.OrderNumber,
		"customer_id":     o.CustomerID,
		"items":           items,
		"mode":            o.Mode,
		"order_status":    o.OrderStatus,
		"delivery_status": o.DeliveryStatus,
		"delivery_code":   o.DeliveryCode,
		"totals": gin.H{
			"subtotal":     o.Totals.Subtotal,
			"delivery_fee": o.Totals.DeliveryFee,
			"taxes":        o.Totals.Taxes,
			"discounts":    o.Totals.Discounts,
			"total":        o.Totals.Total,
			"currency":     o.Totals.Currency,
		},
		"payment": gin.H{
			"method": o.Payment.Method,
			"status": o.Payment.Status,
			"amount": o.Payment.Amount,
		},
		"address": gin.H{
			"line1":       o.Address.Line1,
			"line2":       o.Address.Line2,
			"city":        o.Address.City,
			"postal_code": o.Address.PostalCode,
		},
		"created_at": o.CreatedAt.Format(time.RFC3339),
		"updated_at": o.UpdatedAt.Format(time.RFC3339),
	}
	if o.DriverID != nil {
		v["driver_id"] = *o.DriverID
	}
	if o.EstimatedDeliveryTime != nil {
		v["estimated_delivery_time"] = o.EstimatedDeliveryTime.Format(time.RFC3339)
	}
	if o.ActualDeliveryTime != nil {
		v["actual_delivery_time"] = o.ActualDeliveryTime.Format(time.RFC3339)
	}
	if o.CurrentLocation != nil {
		v["current_location"] = gin.H{"lat": o.CurrentLocation.Lat, "lng": o.CurrentLocation.Lng}
	}
	return v
}

func trackingView(e order.TrackingEntry) gin.H {
	v := gin.H{
		"order_status":    e.OrderStatus,
		"delivery_status": e.DeliveryStatus,
		"actor_role":      e.ActorRole,
		"note":            e.Note,
		"created_at":      e.CreatedAt.Format(time.RFC3339),
	}
	if e.ActorID != nil {
		v["actor_id"] = *e.ActorID
	}
	if e.Location != nil {
		v["location"] = gin.H{"lat": e.Location.Lat, "lng": e.Location.Lng}
	}
	return v
}
