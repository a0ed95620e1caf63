package daraja

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/internal/conversation"
	"github.com/glowhaven/whatsapp-booking/internal/observability/metrics"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// CallbackEnvelope is the body Daraja posts to the callback URL after an
// STK push resolves.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// ParseCallback decodes a Daraja callback body into the normalized payment
// result queued for the conversation workers.
func ParseCallback(body []byte) (conversation.PaymentResult, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return conversation.PaymentResult{}, fmt.Errorf("daraja: decode callback: %w", err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return conversation.PaymentResult{}, fmt.Errorf("daraja: callback carried no checkout request id")
	}

	result := conversation.PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		Success:           cb.ResultCode == 0,
	}
	if !result.Success {
		result.FailureReason = cb.ResultDesc
		return result, nil
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				if s, ok := item.Value.(string); ok {
					result.ReceiptNumber = s
				}
			case "Amount":
				if f, ok := item.Value.(float64); ok {
					result.Amount = f
				}
			}
		}
	}
	return result, nil
}

// bookingStore is the slice of bookings.Service the processor uses.
type bookingStore interface {
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*bookings.Booking, error)
	RecordPayment(ctx context.Context, id uuid.UUID, status bookings.PaymentStatus, receipt string) error
}

// CallbackProcessor applies a payment result to the booking and tells the
// customer. It implements conversation.PaymentProcessor.
type CallbackProcessor struct {
	bookings  bookingStore
	messenger conversation.Messenger
	logger    *logging.Logger
	metrics   *metrics.PaymentMetrics
}

// NewCallbackProcessor builds a processor. The messenger and metrics are
// optional.
func NewCallbackProcessor(bookingSvc bookingStore, messenger conversation.Messenger, m *metrics.PaymentMetrics, logger *logging.Logger) *CallbackProcessor {
	if bookingSvc == nil {
		panic("daraja: booking service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CallbackProcessor{
		bookings:  bookingSvc,
		messenger: messenger,
		logger:    logger,
		metrics:   m,
	}
}

func (p *CallbackProcessor) ProcessPaymentResult(ctx context.Context, result conversation.PaymentResult) error {
	booking, err := p.bookings.GetByCheckoutRequestID(ctx, result.CheckoutRequestID)
	if err != nil {
		p.metrics.ObserveCallback("orphaned")
		return fmt.Errorf("daraja: resolve booking for callback: %w", err)
	}

	status := bookings.PaymentFailed
	if result.Success {
		status = bookings.PaymentPaid
	}
	if err := p.bookings.RecordPayment(ctx, booking.ID, status, result.ReceiptNumber); err != nil {
		p.metrics.ObserveCallback("store_error")
		return fmt.Errorf("daraja: record payment result: %w", err)
	}

	p.logger.Info("payment result recorded",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"status", status,
	)
	if result.Success {
		p.metrics.ObserveCallback("paid")
	} else {
		p.metrics.ObserveCallback("failed")
	}

	p.notify(ctx, booking, result)
	return nil
}

// notify sends the payment outcome to the customer. Failures are logged
// only: the booking record is already correct, and the customer can poll
// status from the conversation.
func (p *CallbackProcessor) notify(ctx context.Context, booking *bookings.Booking, result conversation.PaymentResult) {
	if p.messenger == nil {
		return
	}

	var body string
	if result.Success {
		body = fmt.Sprintf(
			"✅ *Payment Confirmed!*\n\n"+
				"Your deposit of %s has been received.\n\n"+
				"📋 Reference: %s\n🧾 M-Pesa Receipt: %s\n📅 %s\n💅 %s\n\n"+
				"We look forward to seeing you! 💖",
			catalog.FormatAmount("KES", booking.DepositAmount),
			booking.Reference, result.ReceiptNumber,
			booking.AppointmentDisplay, booking.ServiceName)
	} else {
		body = "❌ *Payment Failed*\n\n" +
			"The M-Pesa payment didn't go through. " +
			"Reply with any message and I'll help you retry or cancel."
	}

	if _, err := p.messenger.SendText(ctx, booking.CustomerPhone, body); err != nil {
		p.logger.Error("failed to notify customer of payment result",
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
