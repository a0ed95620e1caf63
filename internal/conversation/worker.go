package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// InboundRecorder persists an inbound message keyed by the provider's
// message id. Created reports whether this call stored a new row; false
// means the message was already processed and must be skipped.
type InboundRecorder interface {
	RecordInbound(ctx context.Context, customerPhone, customerName, content, providerMessageID string) (bool, error)
}

// PaymentProcessor applies a normalized gateway callback: booking status
// update plus customer notification.
type PaymentProcessor interface {
	ProcessPaymentResult(ctx context.Context, result PaymentResult) error
}

// Worker consumes conversation jobs from the queue and drives the engine.
type Worker struct {
	engine   *Engine
	queue    queueClient
	recorder InboundRecorder
	payments PaymentProcessor
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	recorder         InboundRecorder
	payments         PaymentProcessor
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithInboundRecorder wires the audit/idempotency store for inbound
// messages.
func WithInboundRecorder(recorder InboundRecorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.recorder = recorder
	}
}

// WithPaymentProcessor wires the handler for queued gateway callbacks.
func WithPaymentProcessor(processor PaymentProcessor) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.payments = processor
	}
}

// NewWorker builds a queue consumer around the engine.
func NewWorker(engine *Engine, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if engine == nil {
		panic("conversation: engine required")
	}
	if queue == nil {
		panic("conversation: queue client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		engine:   engine,
		queue:    queue,
		recorder: cfg.recorder,
		payments: cfg.payments,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode conversation job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	switch payload.Kind {
	case jobTypeMessage:
		if !w.handleInbound(ctx, payload) {
			// The dedup insert failed, so no row exists and nothing was
			// sent to the customer. Leave the job for redelivery.
			return
		}
	case jobTypePayment:
		w.handlePayment(ctx, payload)
	default:
		w.logger.Error("unknown conversation job kind", "kind", payload.Kind, "job_id", payload.ID)
	}

	// Handled jobs are deleted regardless of engine outcome: the customer
	// already received a fallback reply on failure, and redelivery would
	// double-send it.
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// handleInbound reports whether the job was consumed. False means the
// idempotency insert failed and the job must stay on the queue.
func (w *Worker) handleInbound(ctx context.Context, payload queuePayload) bool {
	if payload.Message == nil {
		w.logger.Error("message job missing payload", "job_id", payload.ID)
		return true
	}
	in := *payload.Message

	if w.recorder != nil && in.ProviderMessageID != "" {
		created, err := w.recorder.RecordInbound(ctx, in.CustomerPhone, in.CustomerName, in.Content, in.ProviderMessageID)
		if err != nil {
			w.logger.Error("failed to record inbound message, leaving job for redelivery",
				"provider_message_id", in.ProviderMessageID,
				"error", err,
			)
			return false
		}
		if !created {
			w.logger.Info("duplicate inbound message skipped",
				"provider_message_id", in.ProviderMessageID,
				"customer", in.CustomerPhone,
			)
			return true
		}
	}

	if err := w.engine.Process(ctx, in); err != nil {
		w.logger.Error("conversation processing failed",
			"job_id", payload.ID,
			"customer", in.CustomerPhone,
			"error", err,
		)
	}
	return true
}

func (w *Worker) handlePayment(ctx context.Context, payload queuePayload) {
	if payload.Payment == nil {
		w.logger.Error("payment job missing payload", "job_id", payload.ID)
		return
	}
	if w.payments == nil {
		w.logger.Error("payment job received but no processor wired", "job_id", payload.ID)
		return
	}
	if err := w.payments.ProcessPaymentResult(ctx, *payload.Payment); err != nil {
		w.logger.Error("payment result processing failed",
			"job_id", payload.ID,
			"checkout_request_id", payload.Payment.CheckoutRequestID,
			"error", err,
		)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
