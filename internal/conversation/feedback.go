package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// FeedbackRatingHandler collects a 1-5 rating before handing off to the
// comment step.
type FeedbackRatingHandler struct {
	logger *logging.Logger
}

func NewFeedbackRatingHandler(logger *logging.Logger) *FeedbackRatingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FeedbackRatingHandler{logger: logger}
}

func (h *FeedbackRatingHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	rating, ok := parseRating(messageContent)
	if !ok {
		return TextOutcome(
			"Please rate your experience with a number from 1 to 5:\n\n" +
				"1️⃣ Poor\n2️⃣ Fair\n3️⃣ Good\n4️⃣ Very Good\n5️⃣ Excellent"), nil
	}

	body := fmt.Sprintf(
		"Thank you for rating us %d/5! ⭐\n\n"+
			"We'd love to hear more. Please share any comments about your experience (or reply 'skip'):",
		rating)
	return TextOutcome(body).
		WithContext(Context{ctxFeedbackRating: rating}).
		WithTransition(StateFeedbackComment), nil
}

// parseRating accepts bare digits and ratings embedded in short replies
// like "5 stars".
func parseRating(messageContent string) (int, bool) {
	trimmed := strings.TrimSpace(messageContent)
	if rating, err := strconv.Atoi(trimmed); err == nil && rating >= 1 && rating <= 5 {
		return rating, true
	}
	for _, field := range strings.Fields(trimmed) {
		if rating, err := strconv.Atoi(field); err == nil && rating >= 1 && rating <= 5 {
			return rating, true
		}
	}
	return 0, false
}

// FeedbackCommentHandler stores the free-text comment alongside the rating
// captured in the previous step.
type FeedbackCommentHandler struct {
	store  FeedbackStore
	logger *logging.Logger
}

func NewFeedbackCommentHandler(store FeedbackStore, logger *logging.Logger) *FeedbackCommentHandler {
	if store == nil {
		panic("conversation: feedback store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FeedbackCommentHandler{store: store, logger: logger}
}

func (h *FeedbackCommentHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	rating, ok := session.Context.Int(ctxFeedbackRating)
	if !ok {
		return TextOutcome("Something went wrong capturing your rating. Let's start over.").
			WithClearContext().
			WithTransition(StateIdle), nil
	}

	comment := strings.TrimSpace(messageContent)
	if strings.EqualFold(comment, "skip") {
		comment = ""
	}

	if err := h.store.Save(ctx, session.CustomerPhone, customerName, rating, comment); err != nil {
		h.logger.Error("failed to save feedback",
			"customer", session.CustomerPhone,
			"error", err,
		)
	} else {
		h.logger.Info("feedback saved",
			"customer", session.CustomerPhone,
			"rating", rating,
		)
	}

	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	body := fmt.Sprintf(
		"Thank you so much for your feedback, %s! 💖\n\n"+
			"We truly appreciate you taking the time. See you again soon!",
		greeting)
	return TextOutcome(body).WithClearContext().WithTransition(StateIdle), nil
}
