package whatsapp

import "encoding/json"

// WebhookPayload is the envelope Meta posts to the webhook endpoint.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextMessage        `json:"text,omitempty"`
	Interactive *InteractiveMessage `json:"interactive,omitempty"`
}

type TextMessage struct {
	Body string `json:"body"`
}

type InteractiveMessage struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
	ListReply   *Reply `json:"list_reply,omitempty"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// InboundMessage is one customer message flattened out of the webhook
// envelope. Content carries the text body for text messages and the
// selection token for interactive replies.
type InboundMessage struct {
	ProviderMessageID string
	From              string
	Name              string
	Content           string
	PhoneNumberID     string
}

// ParseWebhook decodes the webhook body and flattens every customer message
// inside it. Status updates and unsupported message types are skipped.
func ParseWebhook(body []byte) ([]InboundMessage, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload.Flatten(), nil
}

// Flatten extracts all parseable customer messages from the envelope.
func (p *WebhookPayload) Flatten() []InboundMessage {
	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				content, ok := msg.content()
				if !ok {
					continue
				}
				out = append(out, InboundMessage{
					ProviderMessageID: msg.ID,
					From:              msg.From,
					Name:              names[msg.From],
					Content:           content,
					PhoneNumberID:     change.Value.Metadata.PhoneNumberID,
				})
			}
		}
	}
	return out
}

func (m *Message) content() (string, bool) {
	switch m.Type {
	case "text":
		if m.Text == nil {
			return "", false
		}
		return m.Text.Body, true
	case "interactive":
		if m.Interactive == nil {
			return "", false
		}
		switch {
		case m.Interactive.ButtonReply != nil:
			return m.Interactive.ButtonReply.ID, true
		case m.Interactive.ListReply != nil:
			return m.Interactive.ListReply.ID, true
		}
	}
	return "", false
}
