package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

var intentTracer = otel.Tracer("glowhaven.internal.intent")

const systemPromptTemplate = `You are an AI assistant for a beauty salon in Nairobi.

%s

Your task is to analyze customer messages and determine their intent. Classify messages into one of these intents:

1. GENERAL_INQUIRY - Social greetings, conversation starters, and questions about business info: hours, location, services overview, promotions. Greetings are NEVER UNKNOWN.
2. BOOK_APPOINTMENT - Customer wants to book a service or appointment.
3. PRICE_CHECK - Asking about specific service prices or costs.
4. PAYMENT_RELATED - Questions about payments, deposits, or M-Pesa.
5. FEEDBACK - Customer wants to provide feedback, a review, or a complaint.
6. UNKNOWN - Use ONLY for genuinely ambiguous messages: bare context-dependent replies ("Yes", "Ok"), gibberish, or anything a human would need clarified.

Extract relevant entities when possible: service_category, service_name, time_reference.

Respond ONLY with valid JSON in this exact format:
{"intent_type": "GENERAL_INQUIRY", "confidence": 0.95, "entities": {}, "reasoning": "..."}

Confidence guidelines: 0.9-1.0 for explicit intent, 0.7-0.89 for clear but less explicit phrasing, below 0.7 when clarification is needed. If a message has both a greeting and a specific intent, classify by the specific intent.`

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClassifier classifies messages with an OpenAI chat model in JSON
// mode. Any failure degrades to an unknown/zero-confidence result so the
// conversation falls back to a clarification prompt instead of erroring.
type OpenAIClassifier struct {
	client chatClient
	model  string
	logger *logging.Logger
}

// NewOpenAIClassifier wraps an OpenAI client.
func NewOpenAIClassifier(client *openai.Client, model string, logger *logging.Logger) *OpenAIClassifier {
	if client == nil {
		panic("intent: openai client cannot be nil")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClassifier{client: client, model: model, logger: logger}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, message, businessContext string) (Result, error) {
	ctx, span := intentTracer.Start(ctx, "intent.classify")
	defer span.End()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPromptTemplate, businessContext)},
			{Role: openai.ChatMessageRoleUser, Content: "Customer message: " + message},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("intent classification failed", "error", err)
		return Result{Type: TypeUnknown, Reasoning: "classification unavailable"}, nil
	}
	if len(resp.Choices) == 0 {
		err := errors.New("intent: openai returned no choices")
		span.RecordError(err)
		return Result{Type: TypeUnknown, Reasoning: "classification unavailable"}, nil
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Error("failed to parse intent response", "error", err)
		return Result{Type: TypeUnknown, Reasoning: "unparseable classification"}, nil
	}
	span.SetAttributes(
		attribute.String("glowhaven.intent", string(result.Type)),
		attribute.Float64("glowhaven.confidence", result.Confidence),
	)
	return result, nil
}

func parseResult(raw string) (Result, error) {
	var payload struct {
		IntentType string            `json:"intent_type"`
		Confidence float64           `json:"confidence"`
		Entities   map[string]string `json:"entities"`
		Reasoning  string            `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return Result{}, fmt.Errorf("intent: decode response: %w", err)
	}
	return Result{
		Type:       normalizeType(payload.IntentType),
		Confidence: payload.Confidence,
		Entities:   payload.Entities,
		Reasoning:  payload.Reasoning,
	}, nil
}

func normalizeType(raw string) Type {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "general_inquiry":
		return TypeGeneralInquiry
	case "book_appointment":
		return TypeBookAppointment
	case "price_check":
		return TypePriceCheck
	case "payment_related":
		return TypePaymentRelated
	case "feedback":
		return TypeFeedback
	default:
		return TypeUnknown
	}
}
