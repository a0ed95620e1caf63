// Package whatsapp sends and receives messages through the WhatsApp
// Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glowhaven/whatsapp-booking/internal/conversation"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v21.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// Client sends messages via the WhatsApp Cloud API. It implements
// conversation.Messenger.
type Client struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
}

// NewClient creates a new Cloud API client for one sender phone number.
func NewClient(accessToken, phoneNumberID string) *Client {
	if accessToken == "" {
		panic("whatsapp: access token required")
	}
	if phoneNumberID == "" {
		panic("whatsapp: phone number id required")
	}
	return &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
	Document         *document    `json:"document,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactive struct {
	Type   string             `json:"type"`
	Header *interactiveHeader `json:"header,omitempty"`
	Body   textContent        `json:"body"`
	Footer *textContent       `json:"footer,omitempty"`
	Action interactiveAction  `json:"action"`
}

type interactiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type textContent struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons  []replyButton `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []listSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type document struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, sendRequest{
		To:   to,
		Type: "text",
		Text: &textBody{Body: body},
	})
}

// SendButtons sends an interactive reply-button message.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []conversation.Button, header, footer string) (string, error) {
	action := interactiveAction{}
	for _, b := range buttons {
		action.Buttons = append(action.Buttons, replyButton{
			Type:  "reply",
			Reply: buttonReply{ID: b.ID, Title: b.Label},
		})
	}

	msg := &interactive{
		Type:   "button",
		Body:   textContent{Text: body},
		Action: action,
	}
	if header != "" {
		msg.Header = &interactiveHeader{Type: "text", Text: header}
	}
	if footer != "" {
		msg.Footer = &textContent{Text: footer}
	}

	return c.send(ctx, sendRequest{To: to, Type: "interactive", Interactive: msg})
}

// SendList sends an interactive list message.
func (c *Client) SendList(ctx context.Context, to, body, buttonLabel string, sections []conversation.ListSection, header, footer string) (string, error) {
	action := interactiveAction{Button: buttonLabel}
	for _, sec := range sections {
		rows := make([]listRow, 0, len(sec.Rows))
		for _, r := range sec.Rows {
			rows = append(rows, listRow{ID: r.ID, Title: r.Title, Description: r.Description})
		}
		action.Sections = append(action.Sections, listSection{Title: sec.Title, Rows: rows})
	}

	msg := &interactive{
		Type:   "list",
		Body:   textContent{Text: body},
		Action: action,
	}
	if header != "" {
		msg.Header = &interactiveHeader{Type: "text", Text: header}
	}
	if footer != "" {
		msg.Footer = &textContent{Text: footer}
	}

	return c.send(ctx, sendRequest{To: to, Type: "interactive", Interactive: msg})
}

// SendDocument sends a document by link.
func (c *Client) SendDocument(ctx context.Context, to, link, filename, caption string) (string, error) {
	return c.send(ctx, sendRequest{
		To:   to,
		Type: "document",
		Document: &document{
			Link:     link,
			Filename: filename,
			Caption:  caption,
		},
	})
}

func (c *Client) send(ctx context.Context, req sendRequest) (string, error) {
	req.MessagingProduct = "whatsapp"
	req.RecipientType = "individual"

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return "", fmt.Errorf("whatsapp: unmarshal response: %w", err)
	}

	if sendResp.Error != nil {
		return "", fmt.Errorf("whatsapp: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	if len(sendResp.Messages) == 0 {
		return "", fmt.Errorf("whatsapp: response carried no message id")
	}

	return sendResp.Messages[0].ID, nil
}
