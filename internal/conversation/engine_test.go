package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

type capturingDispatcher struct {
	mu   sync.Mutex
	sent []Outcome
	err  error
}

func (d *capturingDispatcher) Dispatch(ctx context.Context, to, customerName string, outcome Outcome) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, outcome)
	return d.err
}

func (d *capturingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func echoHandler(body string) Handler {
	return HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
		return TextOutcome(body), nil
	})
}

// testRegistry registers an echo handler for every state, then applies
// overrides.
func testRegistry(overrides map[State]Handler) *Registry {
	handlers := make(map[State]Handler, len(AllStates()))
	for _, state := range AllStates() {
		handlers[state] = echoHandler("echo from " + string(state))
	}
	for state, h := range overrides {
		handlers[state] = h
	}
	return NewRegistry(handlers)
}

func newTestEngine(t *testing.T, overrides map[State]Handler, opts ...EngineOption) (*Engine, *RedisSessionStore, *capturingDispatcher) {
	t.Helper()
	store := newTestStore(t)
	dispatcher := &capturingDispatcher{}
	engine := NewEngine(store, testRegistry(overrides), dispatcher, logging.Default(), opts...)
	return engine, store, dispatcher
}

func TestProcessCreatesSessionAndReplies(t *testing.T) {
	engine, store, dispatcher := newTestEngine(t, nil)
	ctx := context.Background()

	err := engine.Process(ctx, Inbound{CustomerPhone: "+254722000001", Content: "hi"})
	require.NoError(t, err)

	require.Len(t, dispatcher.sent, 1)
	require.Equal(t, "echo from IDLE", dispatcher.sent[0].Body)

	sess, err := store.Get(ctx, "+254722000001")
	require.NoError(t, err)
	require.Equal(t, StateIdle, sess.State)
}

func TestProcessCascadesIntoNextState(t *testing.T) {
	// A booking intent answers from IDLE, transitions, and the next state's
	// handler runs in the same turn: the customer sees two messages.
	engine, store, dispatcher := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return TextOutcome("Let's get you booked!").WithTransition(StateSelectService), nil
		}),
		StateSelectService: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return ListOutcome("Pick a category", "View", []ListSection{
				{Rows: []ListRow{{ID: "category_nails", Title: "Nails"}}},
			}), nil
		}),
	})
	ctx := context.Background()

	err := engine.Process(ctx, Inbound{CustomerPhone: "+254722000002", Content: "I want to book"})
	require.NoError(t, err)

	require.Len(t, dispatcher.sent, 2)
	require.Equal(t, OutcomeText, dispatcher.sent[0].Kind)
	require.Equal(t, OutcomeList, dispatcher.sent[1].Kind)

	sess, err := store.Get(ctx, "+254722000002")
	require.NoError(t, err)
	require.Equal(t, StateSelectService, sess.State)
}

func TestProcessCascadePassesSameMessage(t *testing.T) {
	var seen []string
	engine, _, _ := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			seen = append(seen, messageContent)
			return TextOutcome("ok").WithTransition(StateSelectService), nil
		}),
		StateSelectService: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			seen = append(seen, messageContent)
			return TextOutcome("done"), nil
		}),
	})

	err := engine.Process(context.Background(), Inbound{CustomerPhone: "+254722000003", Content: "book"})
	require.NoError(t, err)
	require.Equal(t, []string{"book", "book"}, seen)
}

func TestProcessHandlerErrorSendsFallback(t *testing.T) {
	engine, store, dispatcher := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return Outcome{}, errors.New("classifier exploded")
		}),
	})
	ctx := context.Background()

	err := engine.Process(ctx, Inbound{CustomerPhone: "+254722000004", Content: "hi"})
	require.NoError(t, err)

	require.Len(t, dispatcher.sent, 1)
	require.Equal(t, fallbackReply, dispatcher.sent[0].Body)

	sess, err := store.Get(ctx, "+254722000004")
	require.NoError(t, err)
	require.Equal(t, StateIdle, sess.State)
}

func TestProcessHandlerPanicSendsFallback(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			panic("nil map write")
		}),
	})

	err := engine.Process(context.Background(), Inbound{CustomerPhone: "+254722000005", Content: "hi"})
	require.NoError(t, err)
	require.Len(t, dispatcher.sent, 1)
	require.Equal(t, fallbackReply, dispatcher.sent[0].Body)
}

func TestProcessRejectsInvalidTransition(t *testing.T) {
	engine, store, _ := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			// IDLE cannot jump straight to payment.
			return TextOutcome("pay now").WithTransition(StatePaymentInitiated), nil
		}),
	})
	ctx := context.Background()

	err := engine.Process(ctx, Inbound{CustomerPhone: "+254722000006", Content: "hi"})
	var invalid *InvalidStateTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StateIdle, invalid.Current)
	require.Equal(t, StatePaymentInitiated, invalid.Attempted)

	sess, err := store.Get(ctx, "+254722000006")
	require.NoError(t, err)
	require.Equal(t, StateIdle, sess.State)
}

func TestProcessCascadeDepthCap(t *testing.T) {
	// Two handlers that bounce the session between their states forever.
	engine, store, _ := newTestEngine(t, map[State]Handler{
		StateSelectService: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return TextOutcome("forward").WithTransition(StateSelectDateTime), nil
		}),
		StateSelectDateTime: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return TextOutcome("back").WithTransition(StateSelectService), nil
		}),
	})
	ctx := context.Background()
	_, _, err := store.CreateIfAbsent(ctx, "+254722000007", StateSelectService, Context{})
	require.NoError(t, err)

	err = engine.Process(ctx, Inbound{CustomerPhone: "+254722000007", Content: "hi"})
	require.ErrorIs(t, err, ErrCascadeDepthExceeded)
}

func TestProcessSelfTransitionStops(t *testing.T) {
	engine, _, dispatcher := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return TextOutcome("still here").WithTransition(StateIdle), nil
		}),
	})

	err := engine.Process(context.Background(), Inbound{CustomerPhone: "+254722000008", Content: "hi"})
	require.NoError(t, err)
	require.Len(t, dispatcher.sent, 1)
}

func TestProcessAppliesContextMerge(t *testing.T) {
	engine, store, _ := newTestEngine(t, map[State]Handler{
		StateIdle: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return TextOutcome("noted").WithContext(Context{"selected_date": "2026-08-31"}), nil
		}),
	})
	ctx := context.Background()
	_, _, err := store.CreateIfAbsent(ctx, "+254722000009", StateIdle, Context{"existing": "kept"})
	require.NoError(t, err)

	err = engine.Process(ctx, Inbound{CustomerPhone: "+254722000009", Content: "hi"})
	require.NoError(t, err)

	sess, err := store.Get(ctx, "+254722000009")
	require.NoError(t, err)
	require.Equal(t, "kept", sess.Context.String("existing"))
	require.Equal(t, "2026-08-31", sess.Context.String("selected_date"))
}

func TestProcessAppliesContextClear(t *testing.T) {
	engine, store, _ := newTestEngine(t, map[State]Handler{
		StateConfirm: HandlerFunc(func(ctx context.Context, session *Session, messageContent, customerName string) (Outcome, error) {
			return TextOutcome("cancelled").WithClearContext().WithTransition(StateIdle), nil
		}),
	})
	ctx := context.Background()
	_, _, err := store.CreateIfAbsent(ctx, "+254722000010", StateConfirm, Context{"selected_date": "2026-08-31"})
	require.NoError(t, err)

	err = engine.Process(ctx, Inbound{CustomerPhone: "+254722000010", Content: "cancel_booking"})
	require.NoError(t, err)

	sess, err := store.Get(ctx, "+254722000010")
	require.NoError(t, err)
	require.Empty(t, sess.Context)
	require.Equal(t, StateIdle, sess.State)
}
