package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/meridianhq/meridian/internal/money"
)

// Store defines the document store operations the billing service
// consumes. Reads must be strongly consistent with the most recent
// status write; the conversion idempotency guard depends on it.
type Store interface {
	GetQuotation(ctx context.Context, id string) (*Quotation, error)
	ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	CreateQuotation(ctx context.Context, q *Quotation) error
	UpdateQuotation(ctx context.Context, q *Quotation) error
	DeleteQuotation(ctx context.Context, id string) error
	// UpdateQuotationStatus performs a conditional status update. When
	// expected is non-empty and the stored status differs, it fails with
	// ErrConflict and writes nothing.
	UpdateQuotationStatus(ctx context.Context, id string, target QuotationStatus, expected QuotationStatus) (*Quotation, error)

	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
	UpdateInvoiceStatus(ctx context.Context, id string, target InvoiceStatus, expected InvoiceStatus) (*Invoice, error)

	ExpireQuotations(ctx context.Context, asOf time.Time) (int64, error)
	MarkInvoicesOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// ConversionLocker claims a quotation for the duration of a conversion.
// The returned release function must be called when done.
type ConversionLocker interface {
	Acquire(ctx context.Context, quotationID string) (release func(), err error)
}

// ServiceConfig tunes billing policy constants.
type ServiceConfig struct {
	// InvoiceDueDays is added to the invoice date to derive the due
	// date for converted invoices. Defaults to 7.
	InvoiceDueDays int
}

// Service provides business logic for quotations, invoices and the
// quotation-to-invoice conversion workflow.
type Service struct {
	store   Store
	lock    ConversionLocker
	numbers *NumberGenerator
	logger  *slog.Logger
	dueDays int
	now     func() time.Time
}

// NewService constructs a billing service. lock may be nil, in which
// case concurrent conversions are guarded only by the store's
// conditional status update.
func NewService(store Store, lock ConversionLocker, numbers *NumberGenerator, logger *slog.Logger, cfg ServiceConfig) *Service {
	if numbers == nil {
		numbers = NewNumberGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	dueDays := cfg.InvoiceDueDays
	if dueDays <= 0 {
		dueDays = 7
	}
	return &Service{
		store:   store,
		lock:    lock,
		numbers: numbers,
		logger:  logger,
		dueDays: dueDays,
		now:     time.Now,
	}
}

// ============================================================================
// QUOTATION OPERATIONS
// ============================================================================

// CreateQuotation creates a new Draft quotation with computed totals.
func (s *Service) CreateQuotation(ctx context.Context, req CreateQuotationRequest) (*Quotation, error) {
	if err := validateCurrency(req.Currency); err != nil {
		return nil, err
	}
	if req.ExpiryDate != nil && req.ExpiryDate.Before(req.QuotationDate) {
		return nil, fmt.Errorf("%w: expiry_date must be after quotation_date", ErrValidation)
	}

	items, total, err := buildLineItems(req.LineItems)
	if err != nil {
		return nil, err
	}

	now := s.now()
	q := &Quotation{
		ID:              uuid.NewString(),
		QuotationNumber: s.numbers.QuotationNumber(),
		CustomerID:      req.CustomerID,
		QuotationDate:   req.QuotationDate,
		ExpiryDate:      req.ExpiryDate,
		Currency:        req.Currency,
		TotalAmount:     total,
		Status:          QuotationStatusDraft,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		LineItems:       items,
	}
	if err := s.store.CreateQuotation(ctx, q); err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	return q, nil
}

// UpdateQuotation mutates an existing quotation. Invoiced quotations
// are immutable.
func (s *Service) UpdateQuotation(ctx context.Context, id string, req UpdateQuotationRequest) (*Quotation, error) {
	existing, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status == QuotationStatusInvoiced {
		return nil, fmt.Errorf("%w: %s", ErrQuotationInvoiced, existing.QuotationNumber)
	}

	if req.CustomerID != nil {
		existing.CustomerID = *req.CustomerID
	}
	if req.QuotationDate != nil {
		existing.QuotationDate = *req.QuotationDate
	}
	if req.ExpiryDate != nil {
		existing.ExpiryDate = req.ExpiryDate
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if existing.ExpiryDate != nil && existing.ExpiryDate.Before(existing.QuotationDate) {
		return nil, fmt.Errorf("%w: expiry_date must be after quotation_date", ErrValidation)
	}
	if req.LineItems != nil {
		items, total, err := buildLineItems(*req.LineItems)
		if err != nil {
			return nil, err
		}
		existing.LineItems = items
		existing.TotalAmount = total
	}
	existing.UpdatedAt = s.now()

	if err := s.store.UpdateQuotation(ctx, existing); err != nil {
		return nil, fmt.Errorf("update quotation: %w", err)
	}
	return existing, nil
}

// DeleteQuotation removes a quotation. Deleting an Invoiced quotation
// is a data integrity violation and is refused.
func (s *Service) DeleteQuotation(ctx context.Context, id string) error {
	existing, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status == QuotationStatusInvoiced {
		return fmt.Errorf("%w: %s", ErrQuotationInvoiced, existing.QuotationNumber)
	}
	if err := s.store.DeleteQuotation(ctx, id); err != nil {
		return fmt.Errorf("delete quotation: %w", err)
	}
	return nil
}

// GetQuotation retrieves a quotation with its line items.
func (s *Service) GetQuotation(ctx context.Context, id string) (*Quotation, error) {
	return s.store.GetQuotation(ctx, id)
}

// ListQuotations returns a paginated list of quotations.
func (s *Service) ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	return s.store.ListQuotations(ctx, req)
}

// TransitionQuotation moves a quotation to target if the state machine
// allows it. The update is conditional on the status observed here, so
// a concurrent change surfaces as ErrConflict instead of racing.
func (s *Service) TransitionQuotation(ctx context.Context, id string, target QuotationStatus) (*Quotation, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	existing, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if err := checkQuotationTransition(existing.Status, target); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateQuotationStatus(ctx, id, target, existing.Status)
	if err != nil {
		return nil, fmt.Errorf("transition quotation: %w", err)
	}
	return updated, nil
}

// ============================================================================
// CONVERSION ENGINE
// ============================================================================

// ConvertQuotationToInvoice derives an invoice from an Accepted
// quotation, exactly once. The sequence is two dependent writes without
// a distributed transaction: create the invoice, then mark the
// quotation Invoiced. If the second write fails the invoice already
// exists and is not rolled back; the caller receives a
// *PartialConversionWarning carrying the created invoice, and the
// quotation stays in its pre-conversion status for operator
// reconciliation.
func (s *Service) ConvertQuotationToInvoice(ctx context.Context, quotationID string) (*Invoice, error) {
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, quotationID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	// Always refetch: a client-cached snapshot could be stale or
	// already converted.
	q, err := s.store.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if q.Status != QuotationStatusAccepted {
		return nil, fmt.Errorf("%w: quotation %s is %s, only Accepted quotations can be converted",
			ErrConversionNotAllowed, q.QuotationNumber, q.Status)
	}
	if len(q.LineItems) == 0 {
		return nil, fmt.Errorf("%w: quotation %s", ErrNoLineItems, q.QuotationNumber)
	}

	inv := s.buildInvoice(q)
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicateNumber) {
			// Number collision is retryable: regenerate once.
			inv.InvoiceNumber = s.numbers.InvoiceNumber()
			err = s.store.CreateInvoice(ctx, inv)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvoiceCreationFailed, err)
		}
	}

	if _, err := s.store.UpdateQuotationStatus(ctx, quotationID, QuotationStatusInvoiced, QuotationStatusAccepted); err != nil {
		s.logger.Warn("quotation status update failed after invoice creation",
			slog.String("quotation_id", quotationID),
			slog.String("invoice_number", inv.InvoiceNumber),
			slog.Any("error", err))
		return inv, &PartialConversionWarning{QuotationID: quotationID, Invoice: inv, Cause: err}
	}
	return inv, nil
}

// buildInvoice copies the quotation's financial content under a fresh
// invoice identity. Line totals are recomputed rather than trusted;
// a mismatch with the stored value is logged and the recomputed value
// wins.
func (s *Service) buildInvoice(q *Quotation) *Invoice {
	now := s.now()
	issueDate := now.Truncate(24 * time.Hour)

	items := make([]LineItem, 0, len(q.LineItems))
	totals := make([]money.Amount, 0, len(q.LineItems))
	for i, src := range q.LineItems {
		recomputed := money.LineTotal(src.Quantity, src.UnitPrice.Decimal(), src.TaxRate)
		if !recomputed.Equal(src.LineTotal) {
			s.logger.Warn("stored line total differs from recomputed value",
				slog.String("quotation_number", q.QuotationNumber),
				slog.Int("line", i),
				slog.String("stored", src.LineTotal.String()),
				slog.String("recomputed", recomputed.String()))
		}
		items = append(items, LineItem{
			ID:               uuid.NewString(),
			ProductServiceID: src.ProductServiceID,
			Description:      src.Description,
			Quantity:         src.Quantity,
			UnitPrice:        src.UnitPrice,
			TaxRate:          src.TaxRate,
			LineTotal:        recomputed,
			Position:         i + 1,
		})
		totals = append(totals, recomputed)
	}

	notes := fmt.Sprintf("Converted from Quotation %s.", q.QuotationNumber)
	if q.Notes != nil {
		notes = strings.TrimSpace(notes + " " + *q.Notes)
	}

	return &Invoice{
		ID:            uuid.NewString(),
		InvoiceNumber: s.numbers.InvoiceNumber(),
		CustomerID:    q.CustomerID,
		InvoiceDate:   issueDate,
		DueDate:       issueDate.AddDate(0, 0, s.dueDays),
		Currency:      q.Currency,
		TotalAmount:   money.Sum(totals...),
		Status:        InvoiceStatusDraft,
		Notes:         &notes,
		CreatedAt:     now,
		UpdatedAt:     now,
		LineItems:     items,
	}
}

// ============================================================================
// INVOICE OPERATIONS
// ============================================================================

// GetInvoice retrieves an invoice with its line items.
func (s *Service) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

// ListInvoices returns a paginated list of invoices.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.store.ListInvoices(ctx, req)
}

// DeleteInvoice removes an invoice.
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

// TransitionInvoice moves an invoice to target if the state machine
// allows it.
func (s *Service) TransitionInvoice(ctx context.Context, id string, target InvoiceStatus) (*Invoice, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	existing, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if err := checkInvoiceTransition(existing.Status, target); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateInvoiceStatus(ctx, id, target, existing.Status)
	if err != nil {
		return nil, fmt.Errorf("transition invoice: %w", err)
	}
	return updated, nil
}

// ============================================================================
// SWEEPS
// ============================================================================

// ExpireQuotations moves Sent quotations past their expiry date to
// Expired. Returns the number of documents updated.
func (s *Service) ExpireQuotations(ctx context.Context) (int64, error) {
	return s.store.ExpireQuotations(ctx, s.now())
}

// MarkInvoicesOverdue moves Sent invoices past their due date to
// Overdue. Returns the number of documents updated.
func (s *Service) MarkInvoicesOverdue(ctx context.Context) (int64, error) {
	return s.store.MarkInvoicesOverdue(ctx, s.now())
}

// ============================================================================
// HELPERS
// ============================================================================

// buildLineItems validates monetary inputs and computes line totals and
// the document total in fixed point.
func buildLineItems(reqs []LineItemRequest) ([]LineItem, money.Amount, error) {
	items := make([]LineItem, 0, len(reqs))
	totals := make([]money.Amount, 0, len(reqs))
	for i, r := range reqs {
		if err := money.ValidateQuantity(r.Quantity); err != nil {
			return nil, money.Zero(), fmt.Errorf("line %d: %w", i+1, err)
		}
		if r.UnitPrice.IsNegative() {
			return nil, money.Zero(), fmt.Errorf("line %d: %w", i+1, money.ErrNegative)
		}
		if err := money.ValidateTaxRate(r.TaxRate); err != nil {
			return nil, money.Zero(), fmt.Errorf("line %d: %w", i+1, err)
		}
		lineTotal := money.LineTotal(r.Quantity, r.UnitPrice.Decimal(), r.TaxRate)
		items = append(items, LineItem{
			ID:               uuid.NewString(),
			ProductServiceID: r.ProductServiceID,
			Description:      r.Description,
			Quantity:         r.Quantity,
			UnitPrice:        r.UnitPrice,
			TaxRate:          r.TaxRate,
			LineTotal:        lineTotal,
			Position:         i + 1,
		})
		totals = append(totals, lineTotal)
	}
	return items, money.Sum(totals...), nil
}

func validateCurrency(code string) error {
	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Errorf("%w: invalid currency code %q", ErrValidation, code)
	}
	return nil
}
