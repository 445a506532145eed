// README: Courier handlers (available orders, accept, availability, position).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hmarket/internal/http/middleware"
	"hmarket/internal/modules/assignment"
	"hmarket/internal/modules/driver"
	"hmarket/internal/modules/order"
	"hmarket/internal/types"
)

type DriverHandler struct {
	assignment *assignment.Service
	drivers    *driver.Store
	order      *order.Service
}

func NewDriverHandler(assignSvc *assignment.Service, drivers *driver.Store, orderSvc *order.Service) *DriverHandler {
	return &DriverHandler{assignment: assignSvc, drivers: drivers, order: orderSvc}
}

// requireDriver rejects everyone but couriers. Admin passes for operational
// debugging of the courier surface.
func requireDriver(c *gin.Context) (types.ID, bool) {
	role := middleware.CallerRole(c)
	if role != string(order.RoleDriver) && role != string(order.RoleAdmin) {
		writeError(c, http.StatusForbidden, "courier access only")
		return "", false
	}
	return types.ID(middleware.CallerUID(c)), true
}

func (h *DriverHandler) Available(c *gin.Context) {
	driverID, ok := requireDriver(c)
	if !ok {
		return
	}
	available, err := h.assignment.ListAvailable(c.Request.Context(), driverID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	views := make([]gin.H, len(available))
	for i, a := range available {
		v := orderView(a.Order)
		if a.DistanceKm > 0 {
			v["distance_km"] = a.DistanceKm
		}
		views[i] = v
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": views})
}

type acceptReq struct {
	OrderID string `json:"order_id"`
}

func (h *DriverHandler) Accept(c *gin.Context) {
	driverID, ok := requireDriver(c)
	if !ok {
		return
	}
	var req acceptReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		writeError(c, http.StatusBadRequest, "missing order_id")
		return
	}
	o, err := h.assignment.Accept(c.Request.Context(), types.ID(req.OrderID), driverID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type availabilityReq struct {
	Available bool   `json:"available"`
	Zone      string `json:"zone"`
}

func (h *DriverHandler) Availability(c *gin.Context) {
	driverID, ok := requireDriver(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.drivers.SetAvailability(c.Request.Context(), driverID, req.Zone, req.Available); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"available": req.Available})
}

type locationReq struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	OrderID string  `json:"order_id"`
}

// Location records the courier position. When the courier names an active
// order the position is also stamped onto it for customer tracking.
func (h *DriverHandler) Location(c *gin.Context) {
	driverID, ok := requireDriver(c)
	if !ok {
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p := types.Point{Lat: req.Lat, Lng: req.Lng}
	if err := h.drivers.UpdatePosition(c.Request.Context(), driverID, p); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	if req.OrderID != "" {
		if err := h.order.RecordDriverLocation(c.Request.Context(), types.ID(req.OrderID), driverID, p); err != nil {
			writeOrderError(c, err)
			return
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
