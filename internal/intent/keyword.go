package intent

import (
	"context"
	"strings"
)

// KeywordClassifier is a deterministic fallback used when no OpenAI key is
// configured (local development, tests). Matching is crude but covers the
// common phrasings well enough to drive the flow.
type KeywordClassifier struct{}

var keywordRules = []struct {
	intentType Type
	words      []string
}{
	{TypeBookAppointment, []string{"book", "appointment", "schedule", "reserve"}},
	{TypePriceCheck, []string{"price", "cost", "how much", "charge"}},
	{TypePaymentRelated, []string{"pay", "payment", "deposit", "mpesa", "m-pesa"}},
	{TypeFeedback, []string{"feedback", "review", "complain", "complaint", "experience"}},
	{TypeGeneralInquiry, []string{"hi", "hello", "hey", "hour", "open", "location", "where", "address", "promo", "deal", "offer", "service"}},
}

func (KeywordClassifier) Classify(_ context.Context, message, _ string) (Result, error) {
	lower := strings.ToLower(message)
	for _, rule := range keywordRules {
		for _, word := range rule.words {
			if strings.Contains(lower, word) {
				return Result{
					Type:       rule.intentType,
					Confidence: 0.8,
					Reasoning:  "keyword match: " + word,
				}, nil
			}
		}
	}
	return Result{Type: TypeUnknown, Confidence: 0.0, Reasoning: "no keyword match"}, nil
}
