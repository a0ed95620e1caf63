package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

const (
	tokenRetrySameNumber      = "retry_same_number"
	tokenRetryDifferentNumber = "retry_different_number"
	tokenCancelPayment        = "cancel_payment"
)

// PaymentPendingHandler reports payment progress while the customer waits
// for the M-Pesa prompt, and offers retry options when the push fails.
type PaymentPendingHandler struct {
	bookings BookingService
	logger   *logging.Logger
}

func NewPaymentPendingHandler(bookingSvc BookingService, logger *logging.Logger) *PaymentPendingHandler {
	if bookingSvc == nil {
		panic("conversation: booking service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentPendingHandler{bookings: bookingSvc, logger: logger}
}

func (h *PaymentPendingHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	switch strings.TrimSpace(messageContent) {
	case tokenRetrySameNumber:
		return TextOutcome("🔄 Retrying payment with the same number. Please check your phone for the M-Pesa prompt.").
			WithTransition(StatePaymentInitiated), nil
	case tokenRetryDifferentNumber:
		return TextOutcome("Okay, let's use a different number.").
			WithContext(Context{ctxMpesaPhone: "", ctxMpesaAttempts: 0}).
			WithTransition(StatePaymentInitiated), nil
	case tokenCancelPayment:
		return h.cancelPayment(ctx, session, customerName)
	}

	return h.reportStatus(ctx, session)
}

func (h *PaymentPendingHandler) reportStatus(ctx context.Context, session *Session) (Outcome, error) {
	bookingID, err := uuid.Parse(session.Context.String(ctxBookingID))
	if err != nil {
		return h.lostBooking(), nil
	}

	booking, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		h.logger.Error("booking not found while checking payment status",
			"customer", session.CustomerPhone,
			"booking_id", bookingID,
		)
		return h.lostBooking(), nil
	}

	switch booking.PaymentStatus {
	case bookings.PaymentPaid:
		return h.paymentConfirmed(booking), nil
	case bookings.PaymentFailed:
		return h.paymentFailed(), nil
	default:
		return TextOutcome(
			"⏳ Your payment is still being processed.\n\n" +
				"Please check your phone for the M-Pesa prompt and enter your PIN.\n\n" +
				"I'll confirm as soon as the payment goes through."), nil
	}
}

func (h *PaymentPendingHandler) paymentConfirmed(booking *bookings.Booking) Outcome {
	body := fmt.Sprintf(
		"✅ *Payment Confirmed!*\n\n"+
			"Your booking is all set.\n\n"+
			"📋 Reference: %s\n🧾 M-Pesa Receipt: %s\n📅 %s\n💅 %s\n\n"+
			"We look forward to seeing you! 💖",
		booking.Reference, booking.MpesaReceipt, booking.AppointmentDisplay, booking.ServiceName)
	return TextOutcome(body).WithClearContext().WithTransition(StateIdle)
}

func (h *PaymentPendingHandler) paymentFailed() Outcome {
	return ButtonsOutcome(
		"❌ *Payment Failed*\n\nThe M-Pesa payment didn't go through. What would you like to do?",
		[]Button{
			{ID: tokenRetrySameNumber, Label: "Retry Same Number"},
			{ID: tokenRetryDifferentNumber, Label: "Use Different Number"},
			{ID: tokenCancelPayment, Label: "Cancel Booking"},
		})
}

func (h *PaymentPendingHandler) cancelPayment(ctx context.Context, session *Session, customerName string) (Outcome, error) {
	if bookingID, err := uuid.Parse(session.Context.String(ctxBookingID)); err == nil {
		if err := h.bookings.Cancel(ctx, bookingID); err != nil {
			h.logger.Error("failed to cancel booking",
				"booking_id", bookingID,
				"error", err,
			)
		} else {
			h.logger.Info("booking cancelled by customer", "booking_id", bookingID)
		}
	}

	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	body := fmt.Sprintf(
		"No problem, %s. Your booking has been cancelled.\n\n"+
			"Feel free to reach out anytime you'd like to book again! 💖",
		greeting)
	return TextOutcome(body).WithClearContext().WithTransition(StateIdle), nil
}

func (h *PaymentPendingHandler) lostBooking() Outcome {
	return TextOutcome("I apologize, but I couldn't find your booking. Please start again by typing 'book'.").
		WithClearContext().
		WithTransition(StateIdle)
}
