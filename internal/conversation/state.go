// Package conversation implements the state machine that drives customer
// chats: sessions, per-state handlers, and the engine that routes inbound
// messages through them.
package conversation

// State identifies where a customer is in the conversation flow.
type State string

const (
	StateIdle             State = "IDLE"
	StateProcessingIntent State = "PROCESSING_INTENT"
	StateSelectService    State = "BOOKING_SELECT_SERVICE"
	StateSelectDateTime   State = "BOOKING_SELECT_DATETIME"
	StateConfirm          State = "BOOKING_CONFIRM"
	StatePaymentInitiated State = "PAYMENT_INITIATED"
	StatePaymentPending   State = "PAYMENT_PENDING"
	StateFeedbackRating   State = "FEEDBACK_RATING"
	StateFeedbackComment  State = "FEEDBACK_COMMENT"
)

// transitions is the fixed adjacency table. A transition not listed here is
// invalid and must be rejected before any session write.
var transitions = map[State][]State{
	StateIdle:             {StateProcessingIntent, StateSelectService, StateFeedbackRating},
	StateProcessingIntent: {StateIdle, StateSelectService, StateFeedbackRating},
	StateSelectService:    {StateSelectDateTime, StateIdle},
	StateSelectDateTime:   {StateConfirm, StateSelectService, StateIdle},
	StateConfirm:          {StatePaymentInitiated, StateSelectDateTime, StateIdle},
	StatePaymentInitiated: {StatePaymentPending, StateIdle},
	StatePaymentPending:   {StateIdle, StatePaymentInitiated},
	StateFeedbackRating:   {StateFeedbackComment, StateIdle},
	StateFeedbackComment:  {StateIdle},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	if s == StateIdle {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to target is allowed. Every
// state may transition to itself (staying put is never an error).
func (s State) CanTransition(target State) bool {
	if s == target {
		return true
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// AllStates returns every state in the machine, in a stable order.
func AllStates() []State {
	return []State{
		StateIdle,
		StateProcessingIntent,
		StateSelectService,
		StateSelectDateTime,
		StateConfirm,
		StatePaymentInitiated,
		StatePaymentPending,
		StateFeedbackRating,
		StateFeedbackComment,
	}
}
