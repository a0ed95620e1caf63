package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

type fakeRecorder struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{seen: map[string]bool{}}
}

func (r *fakeRecorder) RecordInbound(ctx context.Context, customerPhone, customerName, content, providerMessageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.seen[providerMessageID] {
		return false, nil
	}
	r.seen[providerMessageID] = true
	return true, nil
}

type fakePaymentProcessor struct {
	results []PaymentResult
}

func (p *fakePaymentProcessor) ProcessPaymentResult(ctx context.Context, result PaymentResult) error {
	p.results = append(p.results, result)
	return nil
}

func inboundJob(t *testing.T, in Inbound) queueMessage {
	t.Helper()
	body, err := json.Marshal(queuePayload{ID: "job-1", Kind: jobTypeMessage, Message: &in})
	require.NoError(t, err)
	return queueMessage{ID: "msg-1", Body: string(body), ReceiptHandle: "rh-1"}
}

func TestWorkerSkipsDuplicateInbound(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, nil)
	worker := NewWorker(engine, NewMemoryQueue(8), logging.Default(),
		WithInboundRecorder(newFakeRecorder()))

	job := inboundJob(t, Inbound{
		CustomerPhone:     "+254722000200",
		Content:           "hello",
		ProviderMessageID: "wamid.DUP",
	})

	// The provider redelivered the same webhook; only the first copy runs.
	worker.handleMessage(context.Background(), job)
	worker.handleMessage(context.Background(), job)

	require.Len(t, dispatcher.sent, 1)
}

// countingQueue tracks deletions so tests can assert whether a job was
// consumed or left for redelivery.
type countingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deleted []string
}

func (q *countingQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return q.MemoryQueue.Delete(ctx, receiptHandle)
}

func (q *countingQueue) deleteCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

func TestWorkerRecorderFailureLeavesJobForRedelivery(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, nil)
	recorder := newFakeRecorder()
	recorder.err = errors.New("db down")
	queue := &countingQueue{MemoryQueue: NewMemoryQueue(8)}
	worker := NewWorker(engine, queue, logging.Default(),
		WithInboundRecorder(recorder))

	job := inboundJob(t, Inbound{
		CustomerPhone:     "+254722000201",
		Content:           "hello",
		ProviderMessageID: "wamid.ERR",
	})

	// Insert failed: nothing was sent and the job must stay queued.
	worker.handleMessage(context.Background(), job)
	require.Empty(t, dispatcher.sent)
	require.Zero(t, queue.deleteCount())

	// The store recovers; the redelivered copy processes and is consumed.
	recorder.err = nil
	worker.handleMessage(context.Background(), job)
	require.Len(t, dispatcher.sent, 1)
	require.Equal(t, 1, queue.deleteCount())
}

func TestWorkerProcessesWithoutProviderMessageID(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, nil)
	worker := NewWorker(engine, NewMemoryQueue(8), logging.Default(),
		WithInboundRecorder(newFakeRecorder()))

	// No provider id means no dedup key; the message still processes.
	worker.handleMessage(context.Background(), inboundJob(t, Inbound{
		CustomerPhone: "+254722000202",
		Content:       "hello",
	}))

	require.Len(t, dispatcher.sent, 1)
}

func TestWorkerDispatchesPaymentJobs(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	processor := &fakePaymentProcessor{}
	worker := NewWorker(engine, NewMemoryQueue(8), logging.Default(),
		WithPaymentProcessor(processor))

	body, err := json.Marshal(queuePayload{
		ID:   "job-2",
		Kind: jobTypePayment,
		Payment: &PaymentResult{
			CheckoutRequestID: "ws_CO_TEST_0001",
			Success:           true,
			ReceiptNumber:     "TEST12345",
		},
	})
	require.NoError(t, err)

	worker.handleMessage(context.Background(), queueMessage{ID: "msg-2", Body: string(body), ReceiptHandle: "rh-2"})

	require.Len(t, processor.results, 1)
	require.Equal(t, "ws_CO_TEST_0001", processor.results[0].CheckoutRequestID)
	require.True(t, processor.results[0].Success)
}

func TestWorkerIgnoresMalformedJobs(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, nil)
	worker := NewWorker(engine, NewMemoryQueue(8), logging.Default())

	worker.handleMessage(context.Background(), queueMessage{ID: "msg-3", Body: "{not json", ReceiptHandle: "rh-3"})

	require.Empty(t, dispatcher.sent)
}

func TestWorkerConsumesFromQueue(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, nil)
	queue := NewMemoryQueue(8)
	worker := NewWorker(engine, queue, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(0))

	publisher := NewPublisher(queue)
	err := publisher.EnqueueMessage(context.Background(), Inbound{
		CustomerPhone:     "+254722000203",
		Content:           "hi",
		ProviderMessageID: "wamid.QUEUE",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	require.Eventually(t, func() bool {
		return dispatcher.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	worker.Wait()
}
