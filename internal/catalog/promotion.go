package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppliesToService reports whether the promotion covers the given service.
// A promotion with no explicit service list covers every service.
func (p *Promotion) AppliesToService(serviceID uuid.UUID) bool {
	if len(p.ApplicableServiceIDs) == 0 {
		return true
	}
	for _, id := range p.ApplicableServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// IsActiveOn reports whether the promotion may run on the given date:
// inside its validity window and under its redemption cap.
func (p *Promotion) IsActiveOn(date time.Time) bool {
	day := date.Truncate(24 * time.Hour)
	if p.StartDate != nil && day.Before(p.StartDate.Truncate(24*time.Hour)) {
		return false
	}
	if p.EndDate != nil && day.After(p.EndDate.Truncate(24*time.Hour)) {
		return false
	}
	if p.MaxRedemptions != nil && p.CurrentRedemptions >= *p.MaxRedemptions {
		return false
	}
	return true
}

// IsRecurrenceDay reports whether the promotion recurs on the given date's
// weekday. Promotions without a recurrence rule run every day.
func (p *Promotion) IsRecurrenceDay(date time.Time) bool {
	if p.Recurrence == nil || p.Recurrence.Type != "weekly" {
		return true
	}
	if len(p.Recurrence.Days) == 0 {
		return true
	}
	weekday := strings.ToLower(date.Weekday().String())
	for _, d := range p.Recurrence.Days {
		if strings.ToLower(d) == weekday {
			return true
		}
	}
	return false
}

// FilterApplicable narrows promotions to those valid for the service on the
// appointment date.
func FilterApplicable(promos []Promotion, serviceID uuid.UUID, date time.Time) []Promotion {
	var out []Promotion
	for i := range promos {
		p := &promos[i]
		if p.IsActiveOn(date) && p.AppliesToService(serviceID) && p.IsRecurrenceDay(date) {
			out = append(out, *p)
		}
	}
	return out
}

// SelectBest returns the promotion producing the largest absolute discount
// on the price, or nil when none discounts anything. Ties keep the earliest
// candidate so the choice is deterministic for a stable input order.
func SelectBest(promos []Promotion, price decimal.Decimal) *Promotion {
	var best *Promotion
	maxDiscount := decimal.Zero
	for i := range promos {
		discount := Discount(price, promos[i].Kind, promos[i].Value)
		if discount.GreaterThan(maxDiscount) {
			maxDiscount = discount
			best = &promos[i]
		}
	}
	return best
}
