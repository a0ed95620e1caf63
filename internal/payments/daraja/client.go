// Package daraja talks to Safaricom's Daraja API: OAuth token management,
// STK push initiation, and callback parsing.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	timestampLayout = "20060102150405"

	// Tokens last 3600s; refresh a minute early so an in-flight request
	// never carries an expired token.
	tokenExpirySlack = time.Minute
)

// Config holds Daraja credentials and environment selection.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Sandbox        bool
	// SandboxTestPhone, when set in sandbox mode, replaces the customer's
	// real number so pushes land on Safaricom's test MSISDN.
	SandboxTestPhone string
}

// Client is a Daraja API client. It implements
// conversation.PaymentGateway.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient builds a Daraja client from credentials.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		panic("daraja: consumer credentials required")
	}
	if cfg.ShortCode == "" || cfg.Passkey == "" {
		panic("daraja: shortcode and passkey required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := productionBaseURL
	if cfg.Sandbox {
		baseURL = sandboxBaseURL
	}
	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// SetBaseURL overrides the API base URL (useful for testing).
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessTokenFor returns a cached OAuth token, refreshing when expired.
func (c *Client) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("daraja: create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("daraja: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("daraja: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("daraja: token request returned %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("daraja: decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("daraja: token response carried no access token")
	}

	ttl := 3600
	if parsed, err := strconv.Atoi(token.ExpiresIn); err == nil && parsed > 0 {
		ttl = parsed
	}
	c.accessToken = token.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(ttl)*time.Second - tokenExpirySlack)

	return c.accessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateSTKPush sends a payment prompt to the customer's phone and
// returns the checkout request id used to correlate the async callback.
func (c *Client) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, reference, description string) (string, error) {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return "", err
	}

	msisdn := darajaMSISDN(phone)
	if c.cfg.Sandbox && c.cfg.SandboxTestPhone != "" {
		msisdn = darajaMSISDN(c.cfg.SandboxTestPhone)
	}

	timestamp := c.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))

	pushReq := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		// Daraja rejects decimal amounts; deposits are charged in whole
		// shillings, rounded up so the balance absorbs the cents.
		Amount:           amount.Ceil().String(),
		PartyA:           msisdn,
		PartyB:           c.cfg.ShortCode,
		PhoneNumber:      msisdn,
		CallBackURL:      c.cfg.CallbackURL,
		AccountReference: reference,
		TransactionDesc:  description,
	}

	body, err := json.Marshal(pushReq)
	if err != nil {
		return "", fmt.Errorf("daraja: marshal push request: %w", err)
	}

	url := c.baseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("daraja: create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("daraja: push request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("daraja: read push response: %w", err)
	}

	var pushResp stkPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return "", fmt.Errorf("daraja: decode push response: %w", err)
	}

	if pushResp.ErrorCode != "" {
		return "", fmt.Errorf("daraja: push rejected %s: %s", pushResp.ErrorCode, pushResp.ErrorMessage)
	}
	if pushResp.ResponseCode != "0" {
		return "", fmt.Errorf("daraja: push failed with response code %s: %s", pushResp.ResponseCode, pushResp.ResponseDescription)
	}
	if pushResp.CheckoutRequestID == "" {
		return "", fmt.Errorf("daraja: push response carried no checkout request id")
	}

	c.logger.Info("STK push accepted",
		"checkout_request_id", pushResp.CheckoutRequestID,
		"reference", reference,
	)

	return pushResp.CheckoutRequestID, nil
}

// darajaMSISDN converts a normalized E.164 number to the 254XXXXXXXXX form
// Daraja expects.
func darajaMSISDN(phone string) string {
	return strings.TrimPrefix(phone, "+")
}
