package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shiva/shiptrack/internal/service"
)

// TrackingHandler serves customer tracking polls.
type TrackingHandler struct {
	svc *service.TrackingService
}

// NewTrackingHandler creates a new tracking handler.
func NewTrackingHandler(svc *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{svc: svc}
}

// Track handles GET /tracking/{code}
//
// Response codes:
//
//	200  tracking view with derived progress, position and ETA
//	400  blank code
//	404  unknown code
//	500  store unreachable
func (h *TrackingHandler) Track(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Track(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeServiceError(w, "tracking", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
