// Package bookings persists booking records created by the conversation
// flow and tracks their payment lifecycle.
package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the deposit payment lifecycle of a booking.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a snapshot of everything the customer agreed to, including the
// locked-in pricing shown at confirmation time.
type Booking struct {
	ID                 uuid.UUID
	Reference          string
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
	TotalAmount        decimal.Decimal
	Status             Status
	PaymentStatus      PaymentStatus
	CheckoutRequestID  string
	MpesaReceipt       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
