// Package intent classifies inbound free-text messages so the idle
// conversation handler can route them.
package intent

import "context"

// Type is the coarse category a message falls into.
type Type string

const (
	TypeGeneralInquiry  Type = "general_inquiry"
	TypeBookAppointment Type = "book_appointment"
	TypePriceCheck      Type = "price_check"
	TypePaymentRelated  Type = "payment_related"
	TypeFeedback        Type = "feedback"
	TypeUnknown         Type = "unknown"
)

// MinConfidence is the routing threshold: below it the caller asks the
// customer to rephrase instead of acting on the guess.
const MinConfidence = 0.7

// Result is a classified message.
type Result struct {
	Type       Type              `json:"intent_type"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
}

// Classifier turns a customer message into a Result. businessContext is a
// rendered description of the business (services, promotions, hours) that
// grounds the classification.
type Classifier interface {
	Classify(ctx context.Context, message, businessContext string) (Result, error)
}
