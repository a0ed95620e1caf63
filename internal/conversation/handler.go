package conversation

import "context"

// Handler holds the business logic for one conversation state. The
// orchestrator resolves handlers by the session's current state; routing
// within a state (tokens, prefixes, free text) is the handler's own job.
type Handler interface {
	Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	return f(ctx, session, messageContent, customerName)
}

// Registry is the immutable state -> handler mapping, built once at startup
// and passed into the engine as an explicit dependency.
type Registry struct {
	handlers map[State]Handler
}

// NewRegistry copies the provided mapping. Every state in the machine must
// have a handler; missing entries are a wiring error caught at startup.
func NewRegistry(handlers map[State]Handler) *Registry {
	copied := make(map[State]Handler, len(handlers))
	for state, h := range handlers {
		if h == nil {
			panic("conversation: nil handler for state " + string(state))
		}
		copied[state] = h
	}
	for _, state := range AllStates() {
		if _, ok := copied[state]; !ok {
			panic("conversation: no handler registered for state " + string(state))
		}
	}
	return &Registry{handlers: copied}
}

// Resolve returns the handler for a state.
func (r *Registry) Resolve(state State) (Handler, bool) {
	h, ok := r.handlers[state]
	return h, ok
}
