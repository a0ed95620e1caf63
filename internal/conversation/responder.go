package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// Messenger is the outbound messaging surface the responder writes to.
// Every send returns the provider-assigned message id for audit logging.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendButtons(ctx context.Context, to, body string, buttons []Button, header, footer string) (string, error)
	SendList(ctx context.Context, to, body, buttonLabel string, sections []ListSection, header, footer string) (string, error)
	SendDocument(ctx context.Context, to, url, filename, caption string) (string, error)
}

// OutboundRecorder persists an audit row for each sent message.
type OutboundRecorder interface {
	RecordOutbound(ctx context.Context, customerPhone, customerName, kind, content, providerMessageID string) error
}

// Responder translates outcomes into messenger calls and audits the result.
type Responder struct {
	messenger Messenger
	recorder  OutboundRecorder
	logger    *logging.Logger
}

// NewResponder builds a responder. The recorder is optional.
func NewResponder(messenger Messenger, recorder OutboundRecorder, logger *logging.Logger) *Responder {
	if messenger == nil {
		panic("conversation: messenger required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{messenger: messenger, recorder: recorder, logger: logger}
}

// Dispatch sends the outcome's content variant and records the provider
// message id.
func (r *Responder) Dispatch(ctx context.Context, to string, customerName string, outcome Outcome) error {
	var (
		messageID string
		content   string
		err       error
	)

	switch outcome.Kind {
	case OutcomeText:
		messageID, err = r.messenger.SendText(ctx, to, outcome.Body)
		content = outcome.Body
	case OutcomeButtons:
		messageID, err = r.messenger.SendButtons(ctx, to, outcome.Body, outcome.Buttons, outcome.Header, outcome.Footer)
		ids := make([]string, len(outcome.Buttons))
		for i, b := range outcome.Buttons {
			ids[i] = b.ID
		}
		content = "Buttons: " + strings.Join(ids, ", ")
	case OutcomeList:
		messageID, err = r.messenger.SendList(ctx, to, outcome.Body, outcome.ButtonLabel, outcome.Sections, outcome.Header, outcome.Footer)
		total := 0
		for _, sec := range outcome.Sections {
			total += len(sec.Rows)
		}
		content = fmt.Sprintf("List with %d items", total)
	case OutcomeDocument:
		messageID, err = r.messenger.SendDocument(ctx, to, outcome.DocumentURL, outcome.Filename, outcome.Caption)
		content = "Document: " + outcome.Filename
	default:
		return fmt.Errorf("conversation: unknown outcome kind %q", outcome.Kind)
	}
	if err != nil {
		return &ExternalServiceError{Service: "messaging", Err: err}
	}

	if r.recorder != nil {
		if recErr := r.recorder.RecordOutbound(ctx, to, customerName, string(outcome.Kind), content, messageID); recErr != nil {
			r.logger.Error("failed to record outbound message",
				"customer", to,
				"provider_message_id", messageID,
				"error", recErr,
			)
		}
	}
	return nil
}
