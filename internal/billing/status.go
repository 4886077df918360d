package billing

import "fmt"

// Legal status transitions per document type. Declined, Expired and
// Invoiced quotations are terminal. Paid invoices are terminal; an
// Overdue invoice may still be settled.
var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:    {QuotationStatusSent},
	QuotationStatusSent:     {QuotationStatusAccepted, QuotationStatusDeclined, QuotationStatusExpired},
	QuotationStatusAccepted: {QuotationStatusInvoiced},
	QuotationStatusDeclined: {},
	QuotationStatusExpired:  {},
	QuotationStatusInvoiced: {},
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue},
	InvoiceStatusOverdue: {InvoiceStatusPaid},
	InvoiceStatusPaid:    {},
}

// Valid reports whether s is a known quotation status.
func (s QuotationStatus) Valid() bool {
	_, ok := quotationTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine permits moving from
// s to target.
func (s QuotationStatus) CanTransitionTo(target QuotationStatus) bool {
	for _, t := range quotationTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine permits moving from
// s to target.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, t := range invoiceTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// checkQuotationTransition validates a quotation status change against
// the state machine.
func checkQuotationTransition(current, target QuotationStatus) error {
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("%w: quotation %s -> %s", ErrInvalidTransition, current, target)
	}
	return nil
}

// checkInvoiceTransition validates an invoice status change against the
// state machine.
func checkInvoiceTransition(current, target InvoiceStatus) error {
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("%w: invoice %s -> %s", ErrInvalidTransition, current, target)
	}
	return nil
}
