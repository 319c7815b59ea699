package handler

import (
	"net/http"

	"github.com/shiva/shiptrack/internal/service"
)

// NotifyHandler records delivery-notification subscriptions.
type NotifyHandler struct {
	svc *service.NotificationService
}

// NewNotifyHandler creates a new notify handler.
func NewNotifyHandler(svc *service.NotificationService) *NotifyHandler {
	return &NotifyHandler{svc: svc}
}

// Notify handles POST /notify with {email, shipmentCode}.
func (h *NotifyHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var in service.NotifyInput
	if !decodeJSON(w, r, &in) {
		return
	}

	if err := h.svc.Subscribe(r.Context(), in); err != nil {
		writeServiceError(w, "notify", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": service.NotifyMessage})
}
