package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shiva/shiptrack/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Tracking *TrackingHandler
	Shipment *ShipmentHandler
	Notify   *NotifyHandler

	// Health and Metrics are optional.
	Health  http.Handler
	Metrics http.Handler
}

// NewRouter builds the API router. Every route is served both at the root
// and under /api, matching the paths the web client uses.
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recoverer, middleware.Metrics)

	if h.Health != nil {
		router.Handle("/health", h.Health).Methods(http.MethodGet)
	}
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	mount(router.PathPrefix("/api").Subrouter(), h)
	mount(router, h)
	return router
}

func mount(r *mux.Router, h Handlers) {
	// Tracking
	r.HandleFunc("/tracking/{code}", h.Tracking.Track).Methods(http.MethodGet)
	r.HandleFunc("/tracking/", h.Tracking.Track).Methods(http.MethodGet)
	r.HandleFunc("/history/{code}", h.Shipment.History).Methods(http.MethodGet)
	// Admin
	r.HandleFunc("/shipments", h.Shipment.CreateShipment).Methods(http.MethodPost)
	r.HandleFunc("/shipments", h.Shipment.ListShipments).Methods(http.MethodGet)
	r.HandleFunc("/update-location", h.Shipment.UpdateLocation).Methods(http.MethodPost)
	// Notifications
	r.HandleFunc("/notify", h.Notify.Notify).Methods(http.MethodPost)
}
