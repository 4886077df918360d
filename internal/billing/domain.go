package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianhq/meridian/internal/money"
)

// ============================================================================
// QUOTATION
// ============================================================================

type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "Draft"
	QuotationStatusSent     QuotationStatus = "Sent"
	QuotationStatusAccepted QuotationStatus = "Accepted"
	QuotationStatusDeclined QuotationStatus = "Declined"
	QuotationStatusExpired  QuotationStatus = "Expired"
	QuotationStatusInvoiced QuotationStatus = "Invoiced"
)

// Quotation is a proposed sale awaiting customer acceptance. Its line
// items are owned by the quotation; converting to an invoice copies
// them, it never shares them.
type Quotation struct {
	ID              string          `json:"id" db:"id"`
	QuotationNumber string          `json:"quotation_number" db:"quotation_number"`
	CustomerID      string          `json:"customer_id" db:"customer_id"`
	CustomerName    string          `json:"customer_name,omitempty" db:"customer_name"`
	QuotationDate   time.Time       `json:"quotation_date" db:"quotation_date"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	Currency        string          `json:"currency" db:"currency"`
	TotalAmount     money.Amount    `json:"total_amount" db:"total_amount"`
	Status          QuotationStatus `json:"status" db:"status"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	LineItems       []LineItem      `json:"line_items,omitempty" db:"-"`
}

// ============================================================================
// INVOICE
// ============================================================================

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "Draft"
	InvoiceStatusSent    InvoiceStatus = "Sent"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

// Invoice is a billing document demanding payment. When derived from a
// quotation, customer reference, currency and line items are snapshots
// taken at conversion time, not live links.
type Invoice struct {
	ID            string        `json:"id" db:"id"`
	InvoiceNumber string        `json:"invoice_number" db:"invoice_number"`
	CustomerID    string        `json:"customer_id" db:"customer_id"`
	CustomerName  string        `json:"customer_name,omitempty" db:"customer_name"`
	InvoiceDate   time.Time     `json:"invoice_date" db:"invoice_date"`
	DueDate       time.Time     `json:"due_date" db:"due_date"`
	Currency      string        `json:"currency" db:"currency"`
	TotalAmount   money.Amount  `json:"total_amount" db:"total_amount"`
	Status        InvoiceStatus `json:"status" db:"status"`
	Notes         *string       `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	LineItems     []LineItem    `json:"line_items,omitempty" db:"-"`
}

// ============================================================================
// LINE ITEM
// ============================================================================

// LineItem is one priced entry within a document. Each document owns an
// independent copy; tax is included in the line total and the rate is
// stored for display.
type LineItem struct {
	ID                 string          `json:"id" db:"id"`
	ProductServiceID   *string         `json:"product_service_id,omitempty" db:"product_service_id"`
	ProductServiceName *string         `json:"product_service_name,omitempty" db:"product_service_name"`
	Description        string          `json:"description" db:"description"`
	Quantity           decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice          money.Amount    `json:"unit_price" db:"unit_price"`
	TaxRate            decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	LineTotal          money.Amount    `json:"line_total" db:"line_total"`
	Position           int             `json:"-" db:"position"`
}

// ============================================================================
// REQUESTS
// ============================================================================

type LineItemRequest struct {
	ProductServiceID *string         `json:"product_service_id,omitempty"`
	Description      string          `json:"description" validate:"required,max=500"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        money.Amount    `json:"unit_price"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
}

type CreateQuotationRequest struct {
	CustomerID    string            `json:"customer_id" validate:"required"`
	QuotationDate time.Time         `json:"quotation_date" validate:"required"`
	ExpiryDate    *time.Time        `json:"expiry_date,omitempty"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	Notes         *string           `json:"notes,omitempty"`
	LineItems     []LineItemRequest `json:"line_items" validate:"required,min=1,dive"`
}

type UpdateQuotationRequest struct {
	CustomerID    *string            `json:"customer_id,omitempty"`
	QuotationDate *time.Time         `json:"quotation_date,omitempty"`
	ExpiryDate    *time.Time         `json:"expiry_date,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	LineItems     *[]LineItemRequest `json:"line_items,omitempty" validate:"omitempty,min=1,dive"`
}

type ListQuotationsRequest struct {
	Status     *QuotationStatus `json:"status,omitempty"`
	CustomerID *string          `json:"customer_id,omitempty"`
	Search     *string          `json:"search,omitempty"`
	Limit      int              `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int              `json:"offset" validate:"gte=0"`
}

type ListInvoicesRequest struct {
	Status     *InvoiceStatus `json:"status,omitempty"`
	CustomerID *string        `json:"customer_id,omitempty"`
	Search     *string        `json:"search,omitempty"`
	Limit      int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int            `json:"offset" validate:"gte=0"`
}
