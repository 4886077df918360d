package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianhq/meridian/internal/money"
	"github.com/meridianhq/meridian/internal/shared"
)

// Handler exposes billing operations as a JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotations", func(r chi.Router) {
		r.Get("/", h.listQuotations)
		r.Post("/", h.createQuotation)
		r.Get("/{id}", h.getQuotation)
		r.Put("/{id}", h.updateQuotation)
		r.Delete("/{id}", h.deleteQuotation)
		r.Post("/{id}/send", h.transitionQuotation(QuotationStatusSent))
		r.Post("/{id}/accept", h.transitionQuotation(QuotationStatusAccepted))
		r.Post("/{id}/decline", h.transitionQuotation(QuotationStatusDeclined))
		r.Post("/{id}/expire", h.transitionQuotation(QuotationStatusExpired))
		r.Post("/{id}/convert", h.convertQuotation)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Get("/{id}", h.getInvoice)
		r.Delete("/{id}", h.deleteInvoice)
		r.Post("/{id}/send", h.transitionInvoice(InvoiceStatusSent))
		r.Post("/{id}/pay", h.transitionInvoice(InvoiceStatusPaid))
		r.Post("/{id}/overdue", h.transitionInvoice(InvoiceStatusOverdue))
	})
}

// ============================================================================
// QUOTATION HANDLERS
// ============================================================================

func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	req := ListQuotationsRequest{Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		status := QuotationStatus(v)
		req.Status = &status
	}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		req.CustomerID = &v
	}
	if v := r.URL.Query().Get("search"); v != "" {
		req.Search = &v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			req.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			req.Offset = offset
		}
	}

	quotations, total, err := h.service.ListQuotations(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"quotations": quotations,
		"total":      total,
		"pagination": shared.PaginationFromOffset(req.Limit, req.Offset, total),
	})
}

func (h *Handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetQuotation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, q)
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var req CreateQuotationRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.CreateQuotation(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, q)
}

func (h *Handler) updateQuotation(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuotationRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.UpdateQuotation(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuotation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuotation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transitionQuotation(target QuotationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := h.service.TransitionQuotation(r.Context(), chi.URLParam(r, "id"), target)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, q)
	}
}

// convertQuotation surfaces the three conversion outcomes distinctly:
// 201 with the invoice on full success, an error status on failure, and
// 200 with an explicit warning block when the invoice was created but
// the quotation status update did not commit. A partial result must
// never look like plain success to the client.
func (h *Handler) convertQuotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.service.ConvertQuotationToInvoice(r.Context(), id)

	var partial *PartialConversionWarning
	if errors.As(err, &partial) {
		h.respondJSON(w, http.StatusOK, map[string]any{
			"invoice":            partial.Invoice,
			"partial_conversion": true,
			"warning":            partial.Error(),
		})
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{"invoice": inv})
}

// ============================================================================
// INVOICE HANDLERS
// ============================================================================

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	req := ListInvoicesRequest{Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		status := InvoiceStatus(v)
		req.Status = &status
	}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		req.CustomerID = &v
	}
	if v := r.URL.Query().Get("search"); v != "" {
		req.Search = &v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			req.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			req.Offset = offset
		}
	}

	invoices, total, err := h.service.ListInvoices(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"total":      total,
		"pagination": shared.PaginationFromOffset(req.Limit, req.Offset, total),
	})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transitionInvoice(target InvoiceStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := h.service.TransitionInvoice(r.Context(), chi.URLParam(r, "id"), target)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, inv)
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConversionNotAllowed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrQuotationInvoiced),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrConversionInProgress):
		status = http.StatusConflict
	case errors.Is(err, ErrNoLineItems):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation),
		errors.Is(err, money.ErrNegative),
		errors.Is(err, money.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		h.respondJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}
