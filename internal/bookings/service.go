package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("glowhaven.internal.bookings")

// CreateParams carries everything the conversation flow locked in with the
// customer at confirmation time.
type CreateParams struct {
	BusinessID         uuid.UUID
	CustomerPhone      string
	CustomerName       string
	ServiceName        string
	ServiceCategory    string
	DurationMinutes    int
	AppointmentDate    time.Time
	AppointmentTime    string
	AppointmentDisplay string
	ServicePrice       decimal.Decimal
	DiscountAmount     decimal.Decimal
	PromotionName      string
	DepositAmount      decimal.Decimal
	BalanceAmount      decimal.Decimal
}

// Service creates bookings and applies payment outcomes.
type Service struct {
	repo   *Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs a bookings service.
func NewService(repo *Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create persists a confirmed booking with a fresh reference. Prices are
// stored as quoted so later catalog edits never change what the customer
// agreed to pay.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("glowhaven.business_id", p.BusinessID.String()),
		attribute.String("glowhaven.service", p.ServiceName),
	)

	b := &Booking{
		Reference:          NewReference(s.now()),
		BusinessID:         p.BusinessID,
		CustomerPhone:      p.CustomerPhone,
		CustomerName:       p.CustomerName,
		ServiceName:        p.ServiceName,
		ServiceCategory:    p.ServiceCategory,
		DurationMinutes:    p.DurationMinutes,
		AppointmentDate:    p.AppointmentDate,
		AppointmentTime:    p.AppointmentTime,
		AppointmentDisplay: p.AppointmentDisplay,
		ServicePrice:       p.ServicePrice,
		DiscountAmount:     p.DiscountAmount,
		PromotionName:      p.PromotionName,
		DepositAmount:      p.DepositAmount,
		BalanceAmount:      p.BalanceAmount,
		TotalAmount:        p.ServicePrice.Sub(p.DiscountAmount),
		Status:             StatusConfirmed,
		PaymentStatus:      PaymentPending,
	}
	created, err := s.repo.Create(ctx, b)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("booking created",
		"booking_id", created.ID,
		"reference", created.Reference,
		"service", created.ServiceName,
		"deposit", created.DepositAmount.StringFixed(2),
	)
	return created, nil
}

// Get loads a booking by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCheckoutRequestID resolves a booking from the gateway correlation id.
func (s *Service) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Booking, error) {
	return s.repo.GetByCheckoutRequestID(ctx, checkoutRequestID)
}

// Cancel marks a booking cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("glowhaven.booking_id", id.String()))

	if err := s.repo.Cancel(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("booking cancelled", "booking_id", id)
	return nil
}

// AttachCheckoutRequest stores the payment gateway correlation id.
func (s *Service) AttachCheckoutRequest(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	return s.repo.SetCheckoutRequestID(ctx, id, checkoutRequestID)
}

// RecordPayment applies a payment result reported by the gateway callback.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, status PaymentStatus, receipt string) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.record_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("glowhaven.booking_id", id.String()),
		attribute.String("glowhaven.payment_status", string(status)),
	)

	if err := s.repo.UpdatePaymentStatus(ctx, id, status, receipt); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("payment status updated", "booking_id", id, "payment_status", status)
	return nil
}
