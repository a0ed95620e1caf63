package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/glowhaven/whatsapp-booking/internal/conversation"
	"github.com/glowhaven/whatsapp-booking/internal/payments/daraja"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

type paymentPublisher interface {
	EnqueuePaymentResult(ctx context.Context, result conversation.PaymentResult) error
}

// DarajaCallbackHandler receives STK push results from Safaricom and
// queues them for the conversation workers. Daraja expects a JSON ack
// with ResultCode 0; any other response makes it retry the callback.
type DarajaCallbackHandler struct {
	publisher paymentPublisher
	logger    *logging.Logger
}

func NewDarajaCallbackHandler(publisher paymentPublisher, logger *logging.Logger) *DarajaCallbackHandler {
	if publisher == nil {
		panic("handlers: payment publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DarajaCallbackHandler{publisher: publisher, logger: logger}
}

func (h *DarajaCallbackHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	result, err := daraja.ParseCallback(body)
	if err != nil {
		h.logger.Warn("unparseable daraja callback", "error", err)
		h.ack(w)
		return
	}
	if err := h.publisher.EnqueuePaymentResult(r.Context(), result); err != nil {
		h.logger.Error("failed to enqueue payment result", "error", err, "checkout_request_id", result.CheckoutRequestID)
		http.Error(w, "queue unavailable", http.StatusInternalServerError)
		return
	}
	h.logger.Info("daraja callback queued",
		"checkout_request_id", result.CheckoutRequestID,
		"success", result.Success,
	)
	h.ack(w)
}

func (h *DarajaCallbackHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
