package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// Fixed action tokens for the confirmation buttons.
const (
	tokenConfirmBooking = "confirm_booking"
	tokenCancelBooking  = "cancel_booking"
)

// ConfirmHandler shows the booking summary with locked-in pricing, then
// creates the booking on confirmation. The promotion chosen when the
// summary is shown is persisted into context so the price charged is
// exactly the price displayed, even if promotions change in between.
type ConfirmHandler struct {
	directory Directory
	bookings  BookingService
	logger    *logging.Logger
	now       func() time.Time
}

func NewConfirmHandler(directory Directory, bookingSvc BookingService, logger *logging.Logger) *ConfirmHandler {
	if directory == nil {
		panic("conversation: directory required")
	}
	if bookingSvc == nil {
		panic("conversation: booking service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmHandler{directory: directory, bookings: bookingSvc, logger: logger, now: time.Now}
}

func (h *ConfirmHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	switch messageContent {
	case tokenConfirmBooking:
		return h.createBooking(ctx, session, customerName)
	case tokenCancelBooking:
		return h.cancel(customerName), nil
	default:
		return h.showSummary(ctx, session, customerName)
	}
}

func (h *ConfirmHandler) cancel(customerName string) Outcome {
	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	body := fmt.Sprintf("No problem, %s! Your booking has been cancelled.\n\nWhat else can I help you with today?", greeting)
	return TextOutcome(body).WithClearContext().WithTransition(StateIdle)
}

func (h *ConfirmHandler) showSummary(ctx context.Context, session *Session, customerName string) (Outcome, error) {
	service := session.Context.Map(ctxSelectedService)
	if service == nil {
		h.logger.Error("no selected service in context", "customer", session.CustomerPhone)
		return TextOutcome("I apologize, but I lost track of your selection. Please start again by typing 'book'.").
			WithClearContext().
			WithTransition(StateIdle), nil
	}

	price, err := decimal.NewFromString(service.String("price"))
	if err != nil {
		return Outcome{}, &ValidationError{Field: "selected_service.price", Reason: "unparseable"}
	}
	config, err := h.directory.Config(ctx)
	if err != nil {
		return Outcome{}, err
	}

	quote, err := h.quoteWithBestPromotion(ctx, session, service, price, config)
	if err != nil {
		return Outcome{}, err
	}

	datetimeDisplay := session.Context.String(ctxDateTimeDisplay)
	greeting := "Here's"
	if customerName != "" {
		greeting = customerName + ","
	}

	pricing := fmt.Sprintf("• Total: %s\n", catalog.FormatAmount(config.Currency, quote.OriginalPrice))
	if quote.DiscountAmount.IsPositive() {
		pricing += fmt.Sprintf("• Discount (%s): -%s\n• Price after discount: %s\n",
			quote.PromotionName,
			catalog.FormatAmount(config.Currency, quote.DiscountAmount),
			catalog.FormatAmount(config.Currency, quote.FinalPrice))
	}
	depositPct := config.DepositPercentage.Round(0).String()
	pricing += fmt.Sprintf("• Deposit (%s%%): %s\n• Balance on visit: %s",
		depositPct,
		catalog.FormatAmount(config.Currency, quote.DepositAmount),
		catalog.FormatAmount(config.Currency, quote.BalanceAmount))

	body := fmt.Sprintf(
		"✨ *Booking Summary*\n\n"+
			"📋 *Service:* %s\n"+
			"🏷️ *Category:* %s\n"+
			"⏱️ *Duration:* %v mins\n\n"+
			"📅 *Date & Time:*\n%s\n\n"+
			"💰 *Pricing:*\n%s\n\n"+
			"📍 *Location:*\n%s\n\n"+
			"%s please confirm your booking to proceed with payment.",
		service.String("name"),
		service.String("category"),
		service["duration_minutes"],
		datetimeDisplay,
		pricing,
		config.LocationDisplay,
		greeting,
	)

	out := ButtonsOutcome(body, []Button{
		{ID: tokenConfirmBooking, Label: "✅ Confirm Booking"},
		{ID: tokenCancelBooking, Label: "❌ Cancel"},
	})
	out.Footer = fmt.Sprintf("%s%% deposit required to confirm", depositPct)

	// Persist the quote so confirmation charges exactly what was shown.
	return out.WithContext(Context{
		ctxPromotionID:    quote.PromotionID,
		ctxPromotionName:  quote.PromotionName,
		ctxDiscountAmount: quote.DiscountAmount.StringFixed(2),
		ctxDepositAmount:  quote.DepositAmount.StringFixed(2),
		ctxBalanceAmount:  quote.BalanceAmount.StringFixed(2),
		ctxTotalAmount:    quote.FinalPrice.StringFixed(2),
	}), nil
}

// quoteWithBestPromotion picks the applicable promotion with the largest
// absolute discount, not the first match.
func (h *ConfirmHandler) quoteWithBestPromotion(ctx context.Context, session *Session, service Context, price decimal.Decimal, config *catalog.BusinessConfig) (catalog.Quote, error) {
	promos, err := h.directory.ActivePromotions(ctx)
	if err != nil {
		return catalog.Quote{}, err
	}

	appointmentDate := h.now()
	if dateStr := session.Context.String(ctxSelectedDate); dateStr != "" {
		if parsed, err := time.Parse("2006-01-02", dateStr); err == nil {
			appointmentDate = parsed
		}
	}

	serviceID, _ := uuid.Parse(service.String("id"))
	applicable := catalog.FilterApplicable(promos, serviceID, appointmentDate)
	best := catalog.SelectBest(applicable, price)
	return catalog.BuildQuote(price, config.DepositPercentage, best), nil
}

func (h *ConfirmHandler) createBooking(ctx context.Context, session *Session, customerName string) (Outcome, error) {
	sctx := session.Context
	service := sctx.Map(ctxSelectedService)
	dateStr := sctx.String(ctxSelectedDate)
	timeStr := sctx.String(ctxSelectedTime)
	if service == nil || dateStr == "" || timeStr == "" {
		h.logger.Error("missing booking details in context",
			"customer", session.CustomerPhone,
			"has_service", service != nil,
			"date", dateStr,
			"time", timeStr,
		)
		return TextOutcome("I apologize, but some booking details are missing. Please start again by typing 'book'.").
			WithClearContext().
			WithTransition(StateIdle), nil
	}

	appointmentDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return Outcome{}, &ValidationError{Field: ctxSelectedDate, Reason: "unparseable date"}
	}

	price := mustDecimal(service.String("price"))
	discount := mustDecimal(sctx.String(ctxDiscountAmount))
	deposit := mustDecimal(sctx.String(ctxDepositAmount))
	balance := mustDecimal(sctx.String(ctxBalanceAmount))
	duration, _ := service.Int("duration_minutes")

	config, err := h.directory.Config(ctx)
	if err != nil {
		return Outcome{}, err
	}

	booking, err := h.bookings.Create(ctx, bookings.CreateParams{
		BusinessID:         config.BusinessID,
		CustomerPhone:      session.CustomerPhone,
		CustomerName:       customerName,
		ServiceName:        service.String("name"),
		ServiceCategory:    service.String("category"),
		DurationMinutes:    duration,
		AppointmentDate:    appointmentDate,
		AppointmentTime:    timeStr,
		AppointmentDisplay: sctx.String(ctxDateTimeDisplay),
		ServicePrice:       price,
		DiscountAmount:     discount,
		PromotionName:      sctx.String(ctxPromotionName),
		DepositAmount:      deposit,
		BalanceAmount:      balance,
	})
	if err != nil {
		// Stay in-flow so the customer can tap Confirm again.
		h.logger.Error("failed to create booking",
			"customer", session.CustomerPhone,
			"error", err,
		)
		return TextOutcome("I apologize, but something went wrong while creating your booking. Please try again or contact us directly."), nil
	}

	h.logger.Info("booking created from conversation",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"customer", session.CustomerPhone,
	)

	greeting := "Perfect!"
	if customerName != "" {
		greeting = fmt.Sprintf("Perfect, %s!", customerName)
	}
	body := fmt.Sprintf(
		"%s\n\n✅ Your booking has been created!\n\n"+
			"📋 *Booking Reference:* %s\n"+
			"💳 *Deposit Amount:* %s\n\n"+
			"Next, I'll send you an M-Pesa payment request for the deposit. "+
			"Please check your phone and enter your M-Pesa PIN to complete the payment.",
		greeting,
		booking.Reference,
		catalog.FormatAmount(config.Currency, booking.DepositAmount),
	)

	return TextOutcome(body).
		WithContext(Context{
			ctxBookingID:        booking.ID.String(),
			ctxBookingReference: booking.Reference,
			ctxDepositAmount:    booking.DepositAmount.StringFixed(2),
			ctxBalanceAmount:    booking.BalanceAmount.StringFixed(2),
			ctxTotalAmount:      booking.TotalAmount.StringFixed(2),
		}).
		WithTransition(StatePaymentInitiated), nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
