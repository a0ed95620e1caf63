package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/glowhaven/whatsapp-booking/internal/observability/metrics"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

var engineTracer = otel.Tracer("glowhaven.internal.conversation")

const fallbackReply = "I apologize, but I'm having trouble processing your request. Please try again in a moment."

// DefaultCascadeDepth caps chained handler execution per inbound message.
const DefaultCascadeDepth = 5

// Inbound is one customer message handed to the engine.
type Inbound struct {
	CustomerPhone     string
	CustomerName      string
	Content           string
	ProviderMessageID string
}

// Dispatcher sends an outcome's content to the customer. Implementations
// also record the provider message id for audit.
type Dispatcher interface {
	Dispatch(ctx context.Context, to string, customerName string, outcome Outcome) error
}

// Engine drives the conversation: it loads or creates the session, runs
// the current state's handler, applies context and transition side effects,
// and cascades into the next state's handler within the same turn.
type Engine struct {
	sessions   SessionStore
	registry   *Registry
	dispatcher Dispatcher
	logger     *logging.Logger
	metrics    *metrics.ConversationMetrics
	maxDepth   int
}

// EngineOption customizes engine behavior.
type EngineOption func(*Engine)

// WithCascadeDepth overrides the chained-execution cap.
func WithCascadeDepth(depth int) EngineOption {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithMetrics wires prometheus collectors.
func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine builds the engine. The registry and store are required; the
// dispatcher may be nil in tests that only assert on state.
func NewEngine(sessions SessionStore, registry *Registry, dispatcher Dispatcher, logger *logging.Logger, opts ...EngineOption) *Engine {
	if sessions == nil {
		panic("conversation: session store required")
	}
	if registry == nil {
		panic("conversation: registry required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		sessions:   sessions,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		maxDepth:   DefaultCascadeDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process handles one inbound message end to end. Handler failures never
// propagate to the caller: the customer always gets a reply, even if it is
// the generic fallback.
func (e *Engine) Process(ctx context.Context, in Inbound) error {
	ctx, span := engineTracer.Start(ctx, "conversation.process")
	defer span.End()
	span.SetAttributes(attribute.String("glowhaven.customer", in.CustomerPhone))

	session, created, err := e.sessions.CreateIfAbsent(ctx, in.CustomerPhone, StateIdle, Context{})
	if err != nil {
		e.metrics.ObserveInbound("store_error")
		return fmt.Errorf("conversation: load session: %w", err)
	}
	if created {
		e.logger.Info("conversation session created", "customer", in.CustomerPhone)
	}

	for depth := 0; ; depth++ {
		if depth >= e.maxDepth {
			e.logger.Error("cascade depth exceeded",
				"customer", in.CustomerPhone,
				"state", session.State,
				"depth", depth,
			)
			e.metrics.ObserveInbound("cascade_exceeded")
			return ErrCascadeDepthExceeded
		}

		outcome := e.execute(ctx, session, in)

		e.send(ctx, in, outcome)

		session = e.applyContext(ctx, session, outcome)

		if outcome.TransitionTo == nil {
			break
		}
		target := *outcome.TransitionTo
		if target == session.State {
			break
		}
		if !session.State.CanTransition(target) {
			e.metrics.ObserveTransition(string(session.State), string(target), "rejected")
			err := &InvalidStateTransitionError{Current: session.State, Attempted: target}
			e.logger.Error("invalid state transition attempt",
				"customer", in.CustomerPhone,
				"current_state", session.State,
				"attempted_state", target,
			)
			return err
		}
		if err := e.sessions.UpdateState(ctx, in.CustomerPhone, target); err != nil {
			e.metrics.ObserveTransition(string(session.State), string(target), "store_error")
			return fmt.Errorf("conversation: persist transition: %w", err)
		}
		e.metrics.ObserveTransition(string(session.State), string(target), "ok")
		e.logger.Info("state transition",
			"customer", in.CustomerPhone,
			"previous_state", session.State,
			"new_state", target,
		)
		session.State = target
	}

	e.metrics.ObserveInbound("ok")
	return nil
}

// execute runs the handler for the session's current state. Panics and
// errors are converted into the fallback reply with no state change.
func (e *Engine) execute(ctx context.Context, session *Session, in Inbound) (outcome Outcome) {
	handler, ok := e.registry.Resolve(session.State)
	if !ok {
		e.logger.Error("no handler registered for state", "state", session.State)
		return TextOutcome(fallbackReply)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked",
				"state", session.State,
				"customer", session.CustomerPhone,
				"panic", r,
			)
			outcome = TextOutcome(fallbackReply)
		}
	}()

	start := time.Now()
	result, err := handler.Handle(ctx, session, in.Content, in.CustomerName)
	e.metrics.ObserveHandlerLatency(string(session.State), time.Since(start).Seconds())
	if err != nil {
		var invalid *InvalidStateTransitionError
		if errors.As(err, &invalid) {
			// Bug in handler logic; log loudly but still answer the customer.
			e.logger.Error("handler requested invalid transition",
				"state", session.State,
				"error", err,
			)
		} else {
			e.logger.Error("handler execution failed",
				"state", session.State,
				"customer", session.CustomerPhone,
				"error", err,
			)
		}
		return TextOutcome(fallbackReply)
	}
	return result
}

func (e *Engine) send(ctx context.Context, in Inbound, outcome Outcome) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Dispatch(ctx, in.CustomerPhone, in.CustomerName, outcome); err != nil {
		e.metrics.ObserveOutbound(string(outcome.Kind), "error")
		e.logger.Error("failed to send response",
			"customer", in.CustomerPhone,
			"kind", outcome.Kind,
			"error", err,
		)
		return
	}
	e.metrics.ObserveOutbound(string(outcome.Kind), "ok")
}

// applyContext persists the outcome's context side effect and returns the
// refreshed session. Context failures are logged, not fatal: the reply has
// already been sent.
func (e *Engine) applyContext(ctx context.Context, session *Session, outcome Outcome) *Session {
	var (
		updated *Session
		err     error
	)
	switch {
	case outcome.ClearContext:
		updated, err = e.sessions.ReplaceContext(ctx, session.CustomerPhone, outcome.UpdateContext)
	case len(outcome.UpdateContext) > 0:
		updated, err = e.sessions.MergeContext(ctx, session.CustomerPhone, outcome.UpdateContext)
	default:
		return session
	}
	if err != nil {
		e.logger.Error("context update failed",
			"customer", session.CustomerPhone,
			"error", err,
		)
		return session
	}
	updated.State = session.State
	return updated
}
