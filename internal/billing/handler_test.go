package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(store *fakeStore) http.Handler {
	svc := newTestService(store)
	h := NewHandler(slog.New(slog.DiscardHandler), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestConvertEndpointSuccess(t *testing.T) {
	store := newFakeStore()
	seedQuotation(store, QuotationStatusAccepted, []LineItem{standardLine()})
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/quotations/q-1/convert", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	inv, ok := body["invoice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INV-20250310-143005-042", inv["invoice_number"])
	assert.Equal(t, "Draft", inv["status"])
	assert.NotContains(t, body, "partial_conversion")
}

func TestConvertEndpointRejectsDraft(t *testing.T) {
	store := newFakeStore()
	seedQuotation(store, QuotationStatusDraft, []LineItem{standardLine()})
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/quotations/q-1/convert", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, store.invoices)
}

func TestConvertEndpointPartialWarning(t *testing.T) {
	store := newFakeStore()
	seedQuotation(store, QuotationStatusAccepted, []LineItem{standardLine()})
	store.updateStatusErr = errors.New("store unavailable")
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/quotations/q-1/convert", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["partial_conversion"])
	assert.NotEmpty(t, body["warning"])
	inv, ok := body["invoice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INV-20250310-143005-042", inv["invoice_number"])
}

func TestConvertEndpointNoLineItems(t *testing.T) {
	store := newFakeStore()
	seedQuotation(store, QuotationStatusAccepted, nil)
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/quotations/q-1/convert", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestConvertEndpointNotFound(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/quotations/missing/convert", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateQuotationEndpoint(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	payload := `{
		"customer_id": "cust-1",
		"quotation_date": "2025-03-01T00:00:00Z",
		"currency": "ZAR",
		"line_items": [
			{"description": "Widgets", "quantity": "2", "unit_price": 100.00, "tax_rate": "0.15"}
		]
	}`
	rec := doRequest(t, h, http.MethodPost, "/quotations", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Draft", body["status"])
	assert.Equal(t, 230.00, body["total_amount"])
	assert.Len(t, store.quotations, 1)
}

func TestCreateQuotationEndpointValidation(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	// Missing line items fails struct validation before the service runs.
	rec := doRequest(t, h, http.MethodPost, "/quotations",
		`{"customer_id": "cust-1", "quotation_date": "2025-03-01T00:00:00Z", "currency": "ZAR", "line_items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/quotations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/quotations",
		`{"customer_id": "cust-1", "quotation_date": "2025-03-01T00:00:00Z", "currency": "ZZZ",
		  "line_items": [{"description": "Widgets", "quantity": "1", "unit_price": 10, "tax_rate": "0.15"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, store.quotations)
}

func TestQuotationTransitionEndpoints(t *testing.T) {
	store := newFakeStore()
	seedQuotation(store, QuotationStatusDraft, []LineItem{standardLine()})
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/quotations/q-1/send", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sent", decodeBody(t, rec)["status"])

	rec = doRequest(t, h, http.MethodPost, "/quotations/q-1/accept", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Accepted cannot go back to Sent's predecessors.
	rec = doRequest(t, h, http.MethodPost, "/quotations/q-1/expire", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteInvoicedQuotationEndpoint(t *testing.T) {
	store := newFakeStore()
	seedQuotation(store, QuotationStatusInvoiced, []LineItem{standardLine()})
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodDelete, "/quotations/q-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, store.quotations, 1)
}

func TestListQuotationsEndpointFilters(t *testing.T) {
	store := newFakeStore()
	store.quotations["a"] = &Quotation{ID: "a", Status: QuotationStatusDraft}
	store.quotations["b"] = &Quotation{ID: "b", Status: QuotationStatusSent}
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodGet, "/quotations?status=Sent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
}

func TestInvoiceEndpoints(t *testing.T) {
	store := newFakeStore()
	store.invoices["i-1"] = &Invoice{ID: "i-1", InvoiceNumber: "INV-1", Status: InvoiceStatusDraft}
	h := newTestHandler(store)

	rec := doRequest(t, h, http.MethodPost, "/invoices/i-1/send", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/invoices/i-1/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Paid", decodeBody(t, rec)["status"])

	// Paid is terminal.
	rec = doRequest(t, h, http.MethodPost, "/invoices/i-1/send", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/invoices/i-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/invoices/i-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var _ Store = (*fakeStore)(nil)
