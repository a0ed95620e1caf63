package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeMessage jobType = "message"
	jobTypePayment jobType = "payment_result"
)

// PaymentResult is the normalized outcome of an asynchronous gateway
// callback, queued so payment handling shares the conversation workers.
type PaymentResult struct {
	CheckoutRequestID string  `json:"checkout_request_id"`
	Success           bool    `json:"success"`
	ReceiptNumber     string  `json:"receipt_number,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
	FailureReason     string  `json:"failure_reason,omitempty"`
}

type queuePayload struct {
	ID      string         `json:"id"`
	Kind    jobType        `json:"kind"`
	Message *Inbound       `json:"message,omitempty"`
	Payment *PaymentResult `json:"payment,omitempty"`
}

// Publisher enqueues conversation jobs for asynchronous processing.
type Publisher struct {
	queue queueClient
}

// NewPublisher wraps a queue client.
func NewPublisher(queue queueClient) *Publisher {
	if queue == nil {
		panic("conversation: queue client required")
	}
	return &Publisher{queue: queue}
}

// EnqueueMessage queues an inbound customer message.
func (p *Publisher) EnqueueMessage(ctx context.Context, in Inbound) error {
	return p.publish(ctx, queuePayload{Kind: jobTypeMessage, Message: &in})
}

// EnqueuePaymentResult queues a normalized gateway callback.
func (p *Publisher) EnqueuePaymentResult(ctx context.Context, result PaymentResult) error {
	return p.publish(ctx, queuePayload{Kind: jobTypePayment, Payment: &result})
}

func (p *Publisher) publish(ctx context.Context, payload queuePayload) error {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("conversation: encode job: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("conversation: enqueue job: %w", err)
	}
	return nil
}
