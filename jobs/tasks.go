package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianhq/meridian/internal/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotationExpiry moves Sent quotations past their expiry date
	// to Expired.
	TaskQuotationExpiry = "billing:quotation_expiry"
	// TaskInvoiceOverdue moves Sent invoices past their due date to
	// Overdue.
	TaskInvoiceOverdue = "billing:invoice_overdue"
)

// SweepPayload carries scheduling metadata for the billing sweeps.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewQuotationExpiryTask constructs an Asynq task for the quotation
// expiry sweep.
func NewQuotationExpiryTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpiry, body, asynq.Queue(QueueDefault)), nil
}

// NewInvoiceOverdueTask constructs an Asynq task for the invoice
// overdue sweep.
func NewInvoiceOverdueTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdue, body, asynq.Queue(QueueDefault)), nil
}

// BillingSweeps binds the billing service's maintenance sweeps to
// their task handlers. Both sweeps are set-based and safe to rerun.
type BillingSweeps struct {
	service *billing.Service
	logger  *slog.Logger
}

// NewBillingSweeps constructs the sweep handlers.
func NewBillingSweeps(service *billing.Service, logger *slog.Logger) *BillingSweeps {
	return &BillingSweeps{service: service, logger: logger}
}

// HandleQuotationExpiry processes TaskQuotationExpiry tasks.
func (s *BillingSweeps) HandleQuotationExpiry(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	n, err := s.service.ExpireQuotations(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("quotation expiry sweep complete",
		slog.Int64("expired", n),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}

// HandleInvoiceOverdue processes TaskInvoiceOverdue tasks.
func (s *BillingSweeps) HandleInvoiceOverdue(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	n, err := s.service.MarkInvoicesOverdue(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("invoice overdue sweep complete",
		slog.Int64("marked", n),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}
