package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Quote is the pricing breakdown shown to a customer and locked in at
// booking time. Amounts are rounded to 2 decimal places, half-up.
type Quote struct {
	OriginalPrice     decimal.Decimal
	DiscountAmount    decimal.Decimal
	FinalPrice        decimal.Decimal
	DepositAmount     decimal.Decimal
	BalanceAmount     decimal.Decimal
	DepositPercentage decimal.Decimal
	PromotionID       string
	PromotionName     string
}

// Deposit computes the deposit owed on a price at the given percentage.
func Deposit(price, percentage decimal.Decimal) decimal.Decimal {
	return price.Mul(percentage).Div(oneHundred).Round(2)
}

// Discount computes the absolute discount a promotion takes off a price.
// The discount never exceeds the price itself; an unrecognized kind yields
// zero rather than failing the flow.
func Discount(price decimal.Decimal, kind PromotionKind, value decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch kind {
	case PromotionPercentage:
		discount = price.Mul(value).Div(oneHundred)
	case PromotionFixedAmount:
		discount = value
	default:
		discount = decimal.Zero
	}
	if discount.GreaterThan(price) {
		discount = price
	}
	return discount.Round(2)
}

// BuildQuote applies the (optional) promotion to the price and derives
// deposit and balance from the discounted final price.
func BuildQuote(price decimal.Decimal, depositPercentage decimal.Decimal, promo *Promotion) Quote {
	q := Quote{
		OriginalPrice:     price,
		DiscountAmount:    decimal.Zero,
		DepositPercentage: depositPercentage,
	}
	if promo != nil {
		q.DiscountAmount = Discount(price, promo.Kind, promo.Value)
		q.PromotionID = promo.ID.String()
		q.PromotionName = promo.Name
	}
	q.FinalPrice = price.Sub(q.DiscountAmount).Round(2)
	q.DepositAmount = Deposit(q.FinalPrice, depositPercentage)
	q.BalanceAmount = q.FinalPrice.Sub(q.DepositAmount).Round(2)
	return q
}

// FormatAmount renders an amount with the currency code and thousands
// separators, e.g. "KES 1,750.00".
func FormatAmount(currency string, amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)

	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	if currency == "" {
		return out
	}
	return currency + " " + out
}
