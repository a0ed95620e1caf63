package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowhaven/whatsapp-booking/internal/conversation"
)

type fakeInboundPublisher struct {
	enqueued []conversation.Inbound
	err      error
}

func (f *fakeInboundPublisher) EnqueueMessage(_ context.Context, in conversation.Inbound) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, in)
	return nil
}

const inboundTextPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "104",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "254700000001", "phone_number_id": "1234567890"},
        "contacts": [{"wa_id": "254722123456", "profile": {"name": "Amina"}}],
        "messages": [{
          "id": "wamid.HBgMNTQ3MjIxMjM0NTY",
          "from": "254722123456",
          "timestamp": "1756500000",
          "type": "text",
          "text": {"body": "book"}
        }]
      }
    }]
  }]
}`

func TestWebhookVerifyReturnsChallenge(t *testing.T) {
	h := NewWhatsAppWebhookHandler(&fakeInboundPublisher{}, "secret-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=1158201444", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1158201444", rec.Body.String())
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	h := NewWhatsAppWebhookHandler(&fakeInboundPublisher{}, "secret-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookReceiveEnqueuesNormalizedMessage(t *testing.T) {
	pub := &fakeInboundPublisher{}
	h := NewWhatsAppWebhookHandler(pub, "secret-token", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(inboundTextPayload))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.enqueued, 1)
	in := pub.enqueued[0]
	assert.Equal(t, "+254722123456", in.CustomerPhone)
	assert.Equal(t, "Amina", in.CustomerName)
	assert.Equal(t, "book", in.Content)
	assert.Equal(t, "wamid.HBgMNTQ3MjIxMjM0NTY", in.ProviderMessageID)
}

func TestWebhookReceiveEnqueuesEveryMessageInBatch(t *testing.T) {
	const batchPayload = `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "id": "104",
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messaging_product": "whatsapp",
	        "metadata": {"display_phone_number": "254700000001", "phone_number_id": "1234567890"},
	        "contacts": [{"wa_id": "254722123456", "profile": {"name": "Amina"}}],
	        "messages": [
	          {"id": "wamid.BATCH1", "from": "254722123456", "timestamp": "1756500000", "type": "text", "text": {"body": "book"}},
	          {"id": "wamid.BATCH2", "from": "254722123456", "timestamp": "1756500005", "type": "text", "text": {"body": "category_nails"}}
	        ]
	      }
	    }]
	  }]
	}`

	pub := &fakeInboundPublisher{}
	h := NewWhatsAppWebhookHandler(pub, "secret-token", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(batchPayload))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.enqueued, 2)
	assert.Equal(t, "wamid.BATCH1", pub.enqueued[0].ProviderMessageID)
	assert.Equal(t, "wamid.BATCH2", pub.enqueued[1].ProviderMessageID)
}

func TestWebhookReceiveAcksMalformedPayload(t *testing.T) {
	pub := &fakeInboundPublisher{}
	h := NewWhatsAppWebhookHandler(pub, "secret-token", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.enqueued)
}

func TestWebhookReceiveAcksWhenQueueFails(t *testing.T) {
	pub := &fakeInboundPublisher{err: errors.New("queue down")}
	h := NewWhatsAppWebhookHandler(pub, "secret-token", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(inboundTextPayload))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
