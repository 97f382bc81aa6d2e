package presentation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storebridge/paypal-bridge/internal/application"
	"github.com/storebridge/paypal-bridge/internal/logger"
	"github.com/storebridge/paypal-bridge/internal/presentation/helpers"
)

type CheckoutHandler struct {
	materializer *application.Materializer
	finalizer    *application.Finalizer
	query        *application.OrderQuery
}

func NewCheckoutHandler(m *application.Materializer, f *application.Finalizer, q *application.OrderQuery) *CheckoutHandler {
	return &CheckoutHandler{materializer: m, finalizer: f, query: q}
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/checkout/create-order", h.CreateOrder)
	r.Post("/checkout/complete-order", h.CompleteOrder)
	r.Post("/checkout/validate-fields", h.ValidateFields)
	r.Get("/checkout/orders/{uuid}", h.GetOrder)
}

func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := h.materializer.CreateOrder(r.Context(), &req)
	if err != nil {
		writeAppError(w, err, "failed to create order")
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, resp)
}

func (h *CheckoutHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req application.CompleteOrderRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := h.finalizer.CompleteOrder(r.Context(), &req)
	if err != nil {
		writeAppError(w, err, "failed to complete order")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) ValidateFields(w http.ResponseWriter, r *http.Request) {
	var req application.ValidateFieldsRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	helpers.WriteJSON(w, http.StatusOK, application.ValidateCheckoutFields(&req))
}

func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(chi.URLParam(r, "uuid"))
	id, err := uuid.Parse(raw)
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ord, err := h.query.GetByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "failed to get order")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, ord)
}

// writeAppError maps the application error taxonomy onto HTTP statuses.
// Unexpected failures surface as a generic message; details stay in logs.
func writeAppError(w http.ResponseWriter, err error, generic string) {
	var verr *application.ValidationError
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		helpers.HttpError(w, http.StatusUnauthorized, "Security check failed")
	case errors.As(err, &verr):
		helpers.HttpFieldErrors(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, application.ErrNotFound):
		helpers.HttpError(w, http.StatusNotFound, "Order not found")
	default:
		logger.Warn("request failed", "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, generic)
	}
}
