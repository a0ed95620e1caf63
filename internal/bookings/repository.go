package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no booking matches the lookup.
var ErrNotFound = errors.New("bookings: not found")

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for bookings.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool. The DB
// interface also allows injecting mocks for tests.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	return &Repository{db: db}
}

// Create inserts a booking snapshot and returns it with timestamps set.
func (r *Repository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = StatusConfirmed
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentPending
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO bookings (
			id, reference, business_id, customer_phone, customer_name,
			service_name, service_category, duration_minutes,
			appointment_date, appointment_time, appointment_display,
			service_price, discount_amount, promotion_name,
			deposit_amount, balance_amount, total_amount,
			status, payment_status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		b.ID, b.Reference, b.BusinessID, b.CustomerPhone, b.CustomerName,
		b.ServiceName, b.ServiceCategory, b.DurationMinutes,
		b.AppointmentDate, b.AppointmentTime, b.AppointmentDisplay,
		b.ServicePrice.StringFixed(2), b.DiscountAmount.StringFixed(2), b.PromotionName,
		b.DepositAmount.StringFixed(2), b.BalanceAmount.StringFixed(2), b.TotalAmount.StringFixed(2),
		b.Status, b.PaymentStatus, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("bookings: insert: %w", err)
	}
	return b, nil
}

const bookingColumns = `
	id, reference, business_id, customer_phone, customer_name,
	service_name, service_category, duration_minutes,
	appointment_date, appointment_time, appointment_display,
	service_price::text, discount_amount::text, promotion_name,
	deposit_amount::text, balance_amount::text, total_amount::text,
	status, payment_status, COALESCE(checkout_request_id, ''), COALESCE(mpesa_receipt, ''),
	created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b                        Booking
		price, discount, deposit string
		balance, total           string
		status, paymentStatus    string
	)
	err := row.Scan(
		&b.ID, &b.Reference, &b.BusinessID, &b.CustomerPhone, &b.CustomerName,
		&b.ServiceName, &b.ServiceCategory, &b.DurationMinutes,
		&b.AppointmentDate, &b.AppointmentTime, &b.AppointmentDisplay,
		&price, &discount, &b.PromotionName,
		&deposit, &balance, &total,
		&status, &paymentStatus, &b.CheckoutRequestID, &b.MpesaReceipt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: scan: %w", err)
	}
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(paymentStatus)
	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&b.ServicePrice, price},
		{&b.DiscountAmount, discount},
		{&b.DepositAmount, deposit},
		{&b.BalanceAmount, balance},
		{&b.TotalAmount, total},
	} {
		v, err := decimal.NewFromString(pair.src)
		if err != nil {
			return nil, fmt.Errorf("bookings: parse amount: %w", err)
		}
		*pair.dst = v
	}
	return &b, nil
}

// GetByID loads a booking.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(r.db.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// GetByCheckoutRequestID resolves a booking from the payment gateway's
// correlation id.
func (r *Repository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Booking, error) {
	return scanBooking(r.db.QueryRow(ctx,
		`SELECT`+bookingColumns+` FROM bookings WHERE checkout_request_id = $1`, checkoutRequestID))
}

// Cancel marks a booking cancelled.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3
	`, StatusCancelled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("bookings: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCheckoutRequestID persists the gateway correlation id against the
// booking so the asynchronous payment callback can find it.
func (r *Repository) SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET checkout_request_id = $1, updated_at = $2 WHERE id = $3
	`, checkoutRequestID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("bookings: set checkout request id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePaymentStatus records the outcome reported by the payment gateway.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, receipt string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET payment_status = $1, mpesa_receipt = $2, updated_at = $3 WHERE id = $4
	`, status, receipt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("bookings: update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
