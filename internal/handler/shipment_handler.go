package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/internal/service"
)

// ShipmentHandler handles the administrative shipment endpoints.
type ShipmentHandler struct {
	svc *service.ShipmentService
}

// NewShipmentHandler creates a new shipment handler.
func NewShipmentHandler(svc *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{svc: svc}
}

// CreateShipment handles POST /shipments
//
// Response codes:
//
//	201  {code, message, summary}
//	400  {error, field} naming the first rule that failed
//	500  store failure
func (h *ShipmentHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var in service.CreateShipmentInput
	if !decodeJSON(w, r, &in) {
		return
	}

	res, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, "create shipment", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListShipments handles GET /shipments?limit=&offset=
func (h *ShipmentHandler) ListShipments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	out, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, "list shipments", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// History handles GET /history/{code}
func (h *ShipmentHandler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.History(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeServiceError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.HistoryEvent{"history": events})
}

// locationResponse is returned by a successful override.
type locationResponse struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message"`
	Code     string               `json:"code"`
	Progress float64              `json:"progress"`
	Status   model.ShipmentStatus `json:"status"`
	Current  *model.Location      `json:"current"`
}

// UpdateLocation handles POST /update-location
//
// Response codes:
//
//	200  location (and optionally status) updated
//	400  missing code, coordinates out of range, unknown status
//	404  unknown code
func (h *ShipmentHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var in service.LocationUpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s, err := h.svc.UpdateLocation(r.Context(), in)
	if err != nil {
		writeServiceError(w, "update location", err)
		return
	}
	writeJSON(w, http.StatusOK, locationResponse{
		Success:  true,
		Message:  "Location updated",
		Code:     s.Code,
		Progress: s.Progress,
		Status:   s.Status,
		Current:  s.Current,
	})
}

// queryInt parses an optional non-negative integer query parameter.
// A missing parameter yields 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: name + " must be a non-negative integer",
			Field: name,
		})
		return 0, false
	}
	return n, true
}
