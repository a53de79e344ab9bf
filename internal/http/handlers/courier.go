package handlers

import (
	"net/http"

	"service-delivery-tracking/internal/logx"
)

// CourierHandler serves courier-scoped reads.
type CourierHandler struct {
	earnings earningsUsecase
	logger   logx.Logger
}

// NewCourierHandler creates a new CourierHandler.
func NewCourierHandler(logger logx.Logger, uc earningsUsecase) *CourierHandler {
	return &CourierHandler{earnings: uc, logger: logger}
}

// Earnings handles GET /couriers/me/earnings.
func (h *CourierHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	e, err := h.earnings.Earnings(r.Context(), actorOf(r))
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, earningsToResponse(e))
}
