package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// MaxMpesaValidationAttempts caps how many invalid M-Pesa numbers a
// customer may supply before the booking is cancelled.
const MaxMpesaValidationAttempts = 2

// PaymentInitiatedHandler validates the payment number and fires the STK
// push. Progress within the state is tracked by the mpesa_validation_attempts
// context counter: absent means first entry.
type PaymentInitiatedHandler struct {
	directory Directory
	bookings  BookingService
	gateway   PaymentGateway
	phones    PhoneVerifier
	logger    *logging.Logger
}

func NewPaymentInitiatedHandler(directory Directory, bookingSvc BookingService, gateway PaymentGateway, phones PhoneVerifier, logger *logging.Logger) *PaymentInitiatedHandler {
	if directory == nil {
		panic("conversation: directory required")
	}
	if bookingSvc == nil {
		panic("conversation: booking service required")
	}
	if gateway == nil {
		panic("conversation: payment gateway required")
	}
	if phones == nil {
		panic("conversation: phone verifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentInitiatedHandler{
		directory: directory,
		bookings:  bookingSvc,
		gateway:   gateway,
		phones:    phones,
		logger:    logger,
	}
}

func (h *PaymentInitiatedHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	// Retry tokens arrive when the pending state chains back into this one.
	switch strings.TrimSpace(messageContent) {
	case tokenRetrySameNumber:
		return h.firstEntry(ctx, session, customerName)
	case tokenRetryDifferentNumber:
		return TextOutcome("Please reply with the M-Pesa number you'd like to use (e.g., 0722123456 or +254722123456):").
			WithContext(Context{ctxMpesaAttempts: 0}), nil
	}

	if _, tracking := session.Context.Int(ctxMpesaAttempts); !tracking {
		return h.firstEntry(ctx, session, customerName)
	}
	return h.validateSuppliedNumber(ctx, session, messageContent, customerName)
}

// firstEntry checks whether the customer's own number can receive the STK
// push; if not, it asks for an alternate number and starts counting
// attempts.
func (h *PaymentInitiatedHandler) firstEntry(ctx context.Context, session *Session, customerName string) (Outcome, error) {
	// A stored number from a retry-same-number flow takes precedence.
	payPhone := session.Context.String(ctxMpesaPhone)
	if payPhone == "" {
		payPhone = session.CustomerPhone
	}

	if h.phones.IsSafaricom(payPhone) {
		return h.initiatePush(ctx, session, payPhone)
	}

	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	body := fmt.Sprintf(
		"Hi %s!\n\n❌ Your number (%s) is not registered with Safaricom M-Pesa.\n\n"+
			"To complete your booking payment, please provide a valid Safaricom M-Pesa number.\n\n"+
			"Simply reply with the phone number (e.g., 0722123456 or +254722123456):",
		greeting, payPhone)

	return TextOutcome(body).WithContext(Context{ctxMpesaAttempts: 0}), nil
}

func (h *PaymentInitiatedHandler) validateSuppliedNumber(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
	attempts, _ := session.Context.Int(ctxMpesaAttempts)

	normalized, err := h.phones.Normalize(messageContent)
	if err == nil && h.phones.IsSafaricom(normalized) {
		out, pushErr := h.initiatePush(ctx, session, normalized)
		if pushErr != nil {
			return out, pushErr
		}
		out.UpdateContext = mergedContext(out.UpdateContext, Context{ctxMpesaPhone: normalized})
		return out, nil
	}

	attempts++
	if attempts >= MaxMpesaValidationAttempts {
		return h.cancelAfterValidationFailure(ctx, session, customerName)
	}

	body := fmt.Sprintf(
		"❌ Invalid M-Pesa number.\n\n"+
			"Please provide a valid Safaricom number starting with:\n"+
			"• 07XX (e.g., 0722123456)\n"+
			"• 011X (e.g., 0110123456)\n\n"+
			"Attempt %d of %d. Please try again:",
		attempts, MaxMpesaValidationAttempts)
	return TextOutcome(body).WithContext(Context{ctxMpesaAttempts: attempts}), nil
}

func (h *PaymentInitiatedHandler) initiatePush(ctx context.Context, session *Session, payPhone string) (Outcome, error) {
	sctx := session.Context
	bookingIDStr := sctx.String(ctxBookingID)
	reference := sctx.String(ctxBookingReference)
	depositStr := sctx.String(ctxDepositAmount)

	if bookingIDStr == "" || reference == "" || depositStr == "" {
		h.logger.Error("missing booking details for payment",
			"customer", session.CustomerPhone,
			"booking_id", bookingIDStr,
			"reference", reference,
		)
		return TextOutcome("I apologize, but something went wrong. Please start your booking again by typing 'book'.").
			WithClearContext().
			WithTransition(StateIdle), nil
	}

	bookingID, err := uuid.Parse(bookingIDStr)
	if err != nil {
		return TextOutcome("I apologize, but something went wrong. Please start your booking again by typing 'book'.").
			WithClearContext().
			WithTransition(StateIdle), nil
	}
	deposit, err := decimal.NewFromString(depositStr)
	if err != nil {
		return Outcome{}, &ValidationError{Field: ctxDepositAmount, Reason: "unparseable amount"}
	}

	booking, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		h.logger.Error("booking not found for payment",
			"customer", session.CustomerPhone,
			"booking_id", bookingID,
		)
		return TextOutcome("I apologize, but I couldn't find your booking. Please start again by typing 'book'.").
			WithClearContext().
			WithTransition(StateIdle), nil
	}

	description := "Deposit for " + booking.ServiceName
	checkoutRequestID, err := h.gateway.InitiateSTKPush(ctx, payPhone, deposit, reference, description)
	if err != nil {
		h.logger.Error("failed to initiate STK push",
			"booking_id", bookingID,
			"error", err,
		)
		return TextOutcome("I apologize, but we couldn't send the payment request. Please try again or contact us directly.").
			WithTransition(StateIdle), nil
	}

	if err := h.bookings.AttachCheckoutRequest(ctx, bookingID, checkoutRequestID); err != nil {
		h.logger.Error("failed to persist checkout request id",
			"booking_id", bookingID,
			"checkout_request_id", checkoutRequestID,
			"error", err,
		)
	}

	h.logger.Info("STK push initiated",
		"booking_id", bookingID,
		"checkout_request_id", checkoutRequestID,
	)

	config, err := h.directory.Config(ctx)
	currency := "KES"
	if err == nil {
		currency = config.Currency
	}

	body := fmt.Sprintf(
		"📱 *Payment Request Sent!*\n\n"+
			"Please check your phone for an M-Pesa payment prompt.\n\n"+
			"💰 Amount: %s\n📋 Reference: %s\n\n"+
			"Enter your M-Pesa PIN to complete the payment.\n\n"+
			"⏱️ The prompt will expire in 60 seconds.",
		catalog.FormatAmount(currency, deposit), reference)

	return TextOutcome(body).WithTransition(StatePaymentPending), nil
}

func (h *PaymentInitiatedHandler) cancelAfterValidationFailure(ctx context.Context, session *Session, customerName string) (Outcome, error) {
	if bookingID, err := uuid.Parse(session.Context.String(ctxBookingID)); err == nil {
		if err := h.bookings.Cancel(ctx, bookingID); err != nil {
			h.logger.Error("failed to cancel booking after validation failure",
				"booking_id", bookingID,
				"error", err,
			)
		} else {
			h.logger.Info("booking cancelled after validation failure", "booking_id", bookingID)
		}
	}

	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	body := fmt.Sprintf(
		"Sorry %s, we couldn't verify a valid M-Pesa number.\n\n"+
			"Your booking has been cancelled.\n\n"+
			"If you'd like to try again, please start a new booking or contact us directly.",
		greeting)

	return TextOutcome(body).WithClearContext().WithTransition(StateIdle), nil
}

func mergedContext(base, extra Context) Context {
	if base == nil {
		base = Context{}
	}
	for k, v := range extra {
		base[k] = v
	}
	return base
}
