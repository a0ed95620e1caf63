package conversation

import (
	"context"
	"time"
)

// Context is the free-form key-value data a session accumulates across
// turns: selections, pricing snapshots, retry counters. Values survive a
// JSON round trip, so numbers come back as float64.
type Context map[string]any

// Clone returns a shallow copy.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String returns the value under key as a string, or "" when absent or not
// a string.
func (c Context) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Int returns the value under key as an int. JSON decoding turns numbers
// into float64, so both are accepted.
func (c Context) Int(key string) (int, bool) {
	switch v := c[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Map returns a nested map value, or nil.
func (c Context) Map(key string) Context {
	switch v := c[key].(type) {
	case Context:
		return v
	case map[string]any:
		return Context(v)
	default:
		return nil
	}
}

// Session is one customer's persisted conversation: current state plus
// accumulated context. The customer phone number is the identity key.
type Session struct {
	CustomerPhone string    `json:"customer_phone"`
	State         State     `json:"state"`
	Context       Context   `json:"context"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionStore is the durable session mapping. Implementations must
// guarantee at most one session per customer: CreateIfAbsent resolves
// concurrent creates to a single winner, and losers receive the existing
// session rather than an error.
type SessionStore interface {
	// Get returns the session for the customer or ErrSessionNotFound.
	Get(ctx context.Context, customerPhone string) (*Session, error)
	// CreateIfAbsent atomically creates a session when none exists and
	// returns the stored session either way, plus whether this call
	// created it.
	CreateIfAbsent(ctx context.Context, customerPhone string, initialState State, initialContext Context) (*Session, bool, error)
	// UpdateState persists a new state for an existing session.
	UpdateState(ctx context.Context, customerPhone string, newState State) error
	// MergeContext applies a shallow union: keys in delta are added or
	// overwritten, other keys are preserved.
	MergeContext(ctx context.Context, customerPhone string, delta Context) (*Session, error)
	// ReplaceContext swaps the whole context, used for explicit clears.
	ReplaceContext(ctx context.Context, customerPhone string, newContext Context) (*Session, error)
}
