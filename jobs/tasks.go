package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSubmissionReceived notifies a partner their request was recorded.
	TaskTypeSubmissionReceived = "invoice_request:submitted"
	// TaskTypeRequestApproved notifies a partner their invoice is ready.
	TaskTypeRequestApproved = "invoice_request:approved"
)

// SubmissionReceivedPayload describes a freshly recorded invoice request.
type SubmissionReceivedPayload struct {
	RequestID    int64  `json:"request_id"`
	PartnerName  string `json:"partner_name"`
	PartnerEmail string `json:"partner_email"`
	SaleName     string `json:"sale_name"`
	Token        string `json:"token"`
}

// RequestApprovedPayload describes an approved request and its invoice.
type RequestApprovedPayload struct {
	RequestID    int64  `json:"request_id"`
	PartnerName  string `json:"partner_name"`
	PartnerEmail string `json:"partner_email"`
	InvoiceID    int64  `json:"invoice_id"`
	InvoiceName  string `json:"invoice_name"`
}

// NewSubmissionReceivedTask constructs an Asynq task.
func NewSubmissionReceivedTask(payload SubmissionReceivedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSubmissionReceived, data), nil
}

// NewRequestApprovedTask constructs an Asynq task.
func NewRequestApprovedTask(payload RequestApprovedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRequestApproved, data), nil
}

// NotificationHandlers processes the notification task types.
type NotificationHandlers struct {
	Mailer *Mailer
	Logger *slog.Logger
}

// HandleSubmissionReceived emails the partner a confirmation with their
// resume link token.
func (h *NotificationHandlers) HandleSubmissionReceived(ctx context.Context, t *asynq.Task) error {
	var payload SubmissionReceivedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PartnerEmail == "" {
		h.Logger.Info("submission notice skipped, partner has no email", slog.Int64("request_id", payload.RequestID))
		return nil
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nWe received your invoice request for order %s.\nYou can follow it at /external/sale-invoice/%s\n",
		payload.PartnerName, payload.SaleName, payload.Token,
	)
	return h.Mailer.Send(ctx, payload.PartnerEmail, "Invoice request received", body)
}

// HandleRequestApproved emails the partner once their invoice is posted.
func (h *NotificationHandlers) HandleRequestApproved(ctx context.Context, t *asynq.Task) error {
	var payload RequestApprovedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PartnerEmail == "" {
		h.Logger.Info("approval notice skipped, partner has no email", slog.Int64("request_id", payload.RequestID))
		return nil
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nYour invoice request was approved. Invoice %s is available at /invoice/pdf/%d\n",
		payload.PartnerName, payload.InvoiceName, payload.InvoiceID,
	)
	return h.Mailer.Send(ctx, payload.PartnerEmail, "Your invoice is ready", body)
}
