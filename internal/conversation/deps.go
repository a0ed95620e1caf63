package conversation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/internal/intent"
)

// Context keys shared across handlers. These are the de-facto schema of
// the session context; every writer and reader goes through these names.
const (
	ctxSelectedService    = "selected_service"
	ctxSelectedCategoryID = "selected_category_id"
	ctxSelectedDate       = "selected_date"
	ctxSelectedTime       = "selected_time"
	ctxDateTimeDisplay    = "selected_datetime_display"
	ctxPromotionID        = "promotion_id"
	ctxPromotionName      = "promotion_name"
	ctxDiscountAmount     = "discount_amount"
	ctxBookingID          = "booking_id"
	ctxBookingReference   = "booking_reference"
	ctxDepositAmount      = "deposit_amount"
	ctxBalanceAmount      = "balance_amount"
	ctxTotalAmount        = "total_amount"
	ctxMpesaPhone         = "mpesa_phone_number"
	ctxMpesaAttempts      = "mpesa_validation_attempts"
	ctxFeedbackRating     = "feedback_rating"
)

// Directory is the business-scoped catalog surface handlers read from,
// satisfied by catalog.Directory.
type Directory interface {
	Business(ctx context.Context) (*catalog.Business, error)
	Config(ctx context.Context) (*catalog.BusinessConfig, error)
	Categories(ctx context.Context) ([]catalog.ServiceCategory, error)
	CategoryBySlug(ctx context.Context, slug string) (*catalog.ServiceCategory, error)
	Services(ctx context.Context) ([]catalog.Service, error)
	ServicesByCategory(ctx context.Context, categoryID uuid.UUID) ([]catalog.Service, error)
	ServiceBySlug(ctx context.Context, slug string) (*catalog.Service, error)
	ActivePromotions(ctx context.Context) ([]catalog.Promotion, error)
}

// BookingService is the slice of bookings.Service the handlers use.
type BookingService interface {
	Create(ctx context.Context, p bookings.CreateParams) (*bookings.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	AttachCheckoutRequest(ctx context.Context, id uuid.UUID, checkoutRequestID string) error
}

// PaymentGateway initiates push payments, satisfied by daraja.Client.
type PaymentGateway interface {
	InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, reference, description string) (string, error)
}

// PhoneVerifier normalizes numbers and checks carrier eligibility for
// M-Pesa, satisfied by phone.KenyaVerifier.
type PhoneVerifier interface {
	Normalize(raw string) (string, error)
	IsSafaricom(number string) bool
}

// IntentClassifier is re-exported here so handler constructors read
// naturally; satisfied by intent.OpenAIClassifier and
// intent.KeywordClassifier.
type IntentClassifier = intent.Classifier

// FeedbackStore persists completed customer feedback.
type FeedbackStore interface {
	Save(ctx context.Context, customerPhone, customerName string, rating int, comment string) error
}
