package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotationTransitions(t *testing.T) {
	cases := []struct {
		from    QuotationStatus
		to      QuotationStatus
		allowed bool
	}{
		{QuotationStatusDraft, QuotationStatusSent, true},
		{QuotationStatusDraft, QuotationStatusAccepted, false},
		{QuotationStatusDraft, QuotationStatusInvoiced, false},
		{QuotationStatusSent, QuotationStatusAccepted, true},
		{QuotationStatusSent, QuotationStatusDeclined, true},
		{QuotationStatusSent, QuotationStatusExpired, true},
		{QuotationStatusSent, QuotationStatusDraft, false},
		{QuotationStatusAccepted, QuotationStatusInvoiced, true},
		{QuotationStatusAccepted, QuotationStatusSent, false},
		{QuotationStatusDeclined, QuotationStatusSent, false},
		{QuotationStatusExpired, QuotationStatusSent, false},
		{QuotationStatusInvoiced, QuotationStatusDraft, false},
		{QuotationStatusInvoiced, QuotationStatusAccepted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestInvoiceTransitions(t *testing.T) {
	cases := []struct {
		from    InvoiceStatus
		to      InvoiceStatus
		allowed bool
	}{
		{InvoiceStatusDraft, InvoiceStatusSent, true},
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusSent, InvoiceStatusPaid, true},
		{InvoiceStatusSent, InvoiceStatusOverdue, true},
		{InvoiceStatusSent, InvoiceStatusDraft, false},
		{InvoiceStatusOverdue, InvoiceStatusPaid, true},
		{InvoiceStatusOverdue, InvoiceStatusSent, false},
		{InvoiceStatusPaid, InvoiceStatusSent, false},
		{InvoiceStatusPaid, InvoiceStatusOverdue, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, QuotationStatusDraft.Valid())
	assert.True(t, QuotationStatusInvoiced.Valid())
	assert.False(t, QuotationStatus("Bogus").Valid())
	assert.True(t, InvoiceStatusOverdue.Valid())
	assert.False(t, InvoiceStatus("Cancelled").Valid())
}

func TestCheckTransitionErrors(t *testing.T) {
	err := checkQuotationTransition(QuotationStatusDraft, QuotationStatusInvoiced)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, checkQuotationTransition(QuotationStatusAccepted, QuotationStatusInvoiced))

	err = checkInvoiceTransition(InvoiceStatusPaid, InvoiceStatusSent)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, checkInvoiceTransition(InvoiceStatusOverdue, InvoiceStatusPaid))
}
