package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
)

// DeliveryHandler handles HTTP requests for delivery resources.
type DeliveryHandler struct {
	usecase  deliveryUsecase
	tracking trackingUsecase
	verifier paymentVerifier
	logger   logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler. verifier may be nil when
// payment verification is not configured.
func NewDeliveryHandler(logger logx.Logger, uc deliveryUsecase, tr trackingUsecase, verifier paymentVerifier) *DeliveryHandler {
	return &DeliveryHandler{usecase: uc, tracking: tr, verifier: verifier, logger: logger}
}

// Create handles POST /deliveries.
// @Summary Create a delivery draft
// @Tags deliveries
// @Accept json
// @Produce json
// @Param request body draftRequest true "Draft fields"
// @Success 201 {object} deliveryDTO
// @Failure 400 {object} ErrorResponse "invalid input"
// @Failure 403 {object} ErrorResponse "not a customer"
// @Router /deliveries [post]
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.usecase.Create(r.Context(), actorOf(r), req.toDomain())
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, deliveryToResponse(d))
}

// UpdateDraft handles PATCH /deliveries/{id}.
// @Summary Edit a delivery draft
// @Tags deliveries
// @Router /deliveries/{id} [patch]
func (h *DeliveryHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req draftRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	d, err := h.usecase.UpdateDraft(r.Context(), actorOf(r), id, req.toDomain())
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Get handles GET /deliveries/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	d, err := h.usecase.Get(r.Context(), actorOf(r), id)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// ListAvailable handles GET /deliveries?limit=&offset=, the dispatchable pool.
func (h *DeliveryHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.usecase.ListAvailable(r.Context(), actorOf(r), limit, offset)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, listResponse{
		Items:  deliveriesToResponse(items),
		Limit:  limit,
		Offset: offset,
	})
}

// Transition handles POST /deliveries/{id}/transitions, the HTTP fallback
// for status_update messages.
func (h *DeliveryHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req transitionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	target, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeDomainError(h.logger, w, r, apperr.ErrInvalidTransition)
		return
	}

	d, err := h.tracking.RequestTransition(r.Context(), id, actorOf(r), target, req.Note)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Location handles POST /deliveries/{id}/location.
func (h *DeliveryHandler) Location(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req locationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	accepted, err := h.tracking.RecordLocation(r.Context(), id, actorOf(r), req.Lat, req.Lon, req.Seq)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, locationResponse{Accepted: accepted})
}

// VerifyPayment handles POST /deliveries/{id}/payment/verify. The owner (or
// staff) submits the provider reference; a verified payment is confirmed on
// the delivery.
func (h *DeliveryHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "payment verification unavailable")
		return
	}
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req verifyPaymentRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "reference is required")
		return
	}

	actor := actorOf(r)
	d, err := h.usecase.Get(r.Context(), actor, id)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	if !actor.IsCustomer(d.CustomerRef) && actor.Role != domain.RoleStaff {
		writeDomainError(h.logger, w, r, apperr.ErrForbidden)
		return
	}

	p, err := h.verifier.Verify(r.Context(), req.Reference)
	if err != nil {
		if !errors.Is(err, apperr.ErrPaymentRequired) && !errors.Is(err, apperr.ErrInvalid) {
			h.logger.Error("payment verification failed",
				logx.String("delivery_id", id.String()),
				logx.String("reference", req.Reference),
				logx.Err(err),
			)
		}
		writeDomainError(h.logger, w, r, err)
		return
	}

	if p.DeliveryID != "" && p.DeliveryID != id.String() {
		writeDomainError(h.logger, w, r, fmt.Errorf("%w: payment %s belongs to another delivery", apperr.ErrConflict, p.Reference))
		return
	}

	d, err = h.tracking.ConfirmPayment(r.Context(), id, p.Reference, p.Amount)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}
