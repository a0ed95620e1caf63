// Package catalog exposes the business catalog read model: businesses,
// service categories, services, promotions and per-business configuration,
// together with the pricing rules applied during the booking flow.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business is a single tenant of the platform.
type Business struct {
	ID              uuid.UUID
	Tag             string
	Name            string
	Phone           string
	Email           string
	InstagramHandle string
	Address         string
}

// ServiceCategory groups bookable services for list presentation.
type ServiceCategory struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Slug       string
	Name       string
	Position   int
}

// Service is a bookable offering with a fixed price and duration.
type Service struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	CategoryID      uuid.UUID
	CategorySlug    string
	CategoryName    string
	Slug            string
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
}

// PromotionKind discriminates how a promotion's value is applied.
type PromotionKind string

const (
	PromotionPercentage  PromotionKind = "percentage_discount"
	PromotionFixedAmount PromotionKind = "fixed_amount"
)

// RecurrenceRule restricts a promotion to particular weekdays.
// An empty Days list means every day.
type RecurrenceRule struct {
	Type string   `json:"type"`
	Days []string `json:"days,omitempty"`
}

// Promotion is a discount campaign attached to a business.
type Promotion struct {
	ID                   uuid.UUID
	BusinessID           uuid.UUID
	Name                 string
	Kind                 PromotionKind
	Value                decimal.Decimal
	StartDate            *time.Time
	EndDate              *time.Time
	MaxRedemptions       *int
	CurrentRedemptions   int
	ApplicableServiceIDs []uuid.UUID
	Recurrence           *RecurrenceRule
}

// BusinessConfig holds per-business booking policy.
type BusinessConfig struct {
	BusinessID        uuid.UUID
	DepositPercentage decimal.Decimal
	Currency          string
	ContactPhone      string
	ContactEmail      string
	LocationDisplay   string
}
