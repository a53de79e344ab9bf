package handlers

import (
	"net/http"

	"service-delivery-tracking/internal/logx"
)

// RealtimeHandler maps WebSocket routes onto the connection manager.
type RealtimeHandler struct {
	server realtimeServer
	logger logx.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(logger logx.Logger, server realtimeServer) *RealtimeHandler {
	return &RealtimeHandler{server: server, logger: logger}
}

// Delivery handles GET /ws/deliveries/{id}.
func (h *RealtimeHandler) Delivery(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	h.server.ServeDelivery(w, r, id)
}

// Notifications handles GET /ws/notifications.
func (h *RealtimeHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	h.server.ServeNotifications(w, r)
}
