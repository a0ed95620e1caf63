package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/glowhaven/whatsapp-booking/internal/conversation"
	"github.com/glowhaven/whatsapp-booking/internal/phone"
	"github.com/glowhaven/whatsapp-booking/internal/whatsapp"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

type inboundPublisher interface {
	EnqueueMessage(ctx context.Context, in conversation.Inbound) error
}

// WhatsAppWebhookHandler receives Meta webhook traffic: the one-time
// subscription handshake plus inbound customer messages. Messages are
// queued immediately so Meta always gets a fast 200; slow handling here
// triggers webhook retries and duplicate deliveries.
type WhatsAppWebhookHandler struct {
	publisher   inboundPublisher
	verifyToken string
	logger      *logging.Logger
}

func NewWhatsAppWebhookHandler(publisher inboundPublisher, verifyToken string, logger *logging.Logger) *WhatsAppWebhookHandler {
	if publisher == nil {
		panic("handlers: inbound publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{publisher: publisher, verifyToken: verifyToken, logger: logger}
}

// Verify answers Meta's GET handshake when the webhook is registered.
func (h *WhatsAppWebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken {
		h.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// Receive handles webhook POSTs. Meta treats anything but a 200 as a
// delivery failure and retries, so parse errors are acknowledged after
// logging rather than surfaced.
func (h *WhatsAppWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("unparseable webhook payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	for _, msg := range msgs {
		normalized, err := phone.Normalize(msg.From)
		if err != nil {
			h.logger.Warn("skipping message from unparseable number", "error", err, "provider_message_id", msg.ProviderMessageID)
			continue
		}
		in := conversation.Inbound{
			CustomerPhone:     normalized,
			CustomerName:      msg.Name,
			Content:           msg.Content,
			ProviderMessageID: msg.ProviderMessageID,
		}
		if err := h.publisher.EnqueueMessage(r.Context(), in); err != nil {
			h.logger.Error("failed to enqueue inbound message", "error", err, "provider_message_id", msg.ProviderMessageID)
		}
	}
	w.WriteHeader(http.StatusOK)
}
