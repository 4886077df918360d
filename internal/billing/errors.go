package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrValidation indicates a request that fails business validation.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status change the state machine
	// does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConversionNotAllowed indicates the quotation is not in the
	// Accepted state. This is a business precondition failure, distinct
	// from a state machine violation.
	ErrConversionNotAllowed = errors.New("conversion not allowed")
	// ErrNoLineItems indicates a conversion attempt on a quotation with
	// no economic content.
	ErrNoLineItems = errors.New("quotation has no line items")
	// ErrInvoiceCreationFailed indicates the invoice write failed; the
	// source quotation is untouched.
	ErrInvoiceCreationFailed = errors.New("invoice creation failed")
	// ErrDuplicateNumber indicates a document number collision.
	ErrDuplicateNumber = errors.New("document number already exists")
	// ErrConflict indicates a conditional status update found the
	// document in a different state than expected.
	ErrConflict = errors.New("document was modified concurrently")
	// ErrQuotationInvoiced indicates an attempt to delete or edit a
	// quotation that has already been converted.
	ErrQuotationInvoiced = errors.New("quotation has been invoiced")
	// ErrConversionInProgress indicates another conversion currently
	// holds the claim on this quotation.
	ErrConversionInProgress = errors.New("conversion already in progress")
)

// PartialConversionWarning reports that the invoice was created but the
// source quotation could not be marked Invoiced. The invoice is never
// rolled back; an operator must reconcile the quotation left Accepted.
type PartialConversionWarning struct {
	QuotationID string
	Invoice     *Invoice
	Cause       error
}

func (w *PartialConversionWarning) Error() string {
	return fmt.Sprintf("invoice %s created but quotation %s was not marked invoiced: %v",
		w.Invoice.InvoiceNumber, w.QuotationID, w.Cause)
}

func (w *PartialConversionWarning) Unwrap() error {
	return w.Cause
}
