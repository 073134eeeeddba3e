package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSConfig holds configuration for SMS notifications via Twilio
type SMSConfig struct {
	AccountSID   string // Twilio Account SID
	AuthToken    string // Twilio Auth Token
	SenderNumber string // Twilio phone number to send from (E.164 format)
	BaseURL      string // defaults to the Twilio API, overridable for tests
	HTTPClient   *http.Client
}

// SMSClient sends SMS notifications via Twilio Programmable Messaging.
// A nil client is valid and drops every send, so callers never need to guard
// the disabled case.
type SMSClient struct {
	accountSID   string
	authToken    string
	senderNumber string
	baseURL      string
	httpClient   *http.Client
	logger       *log.Logger
}

// NewSMSClient creates a new SMS client. Missing credentials disable SMS
// delivery rather than failing startup.
func NewSMSClient(cfg SMSConfig, logger *log.Logger) *SMSClient {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.SenderNumber == "" {
		logger.Println("SMS: missing Twilio credentials, SMS notifications disabled")
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger.Printf("SMS: client initialized (sender=%s)", cfg.SenderNumber)
	return &SMSClient{
		accountSID:   cfg.AccountSID,
		authToken:    cfg.AuthToken,
		senderNumber: cfg.SenderNumber,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:   cfg.HTTPClient,
		logger:       logger,
	}
}

// twilioMessageResponse represents a Twilio Messages API response
type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SendSMS sends an SMS message to the specified phone number
func (c *SMSClient) SendSMS(ctx context.Context, to, body string) error {
	if c == nil {
		return nil
	}

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", c.senderNumber)
	data.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("SMS: failed to send to %s: %v", to, err)
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	var msgResp twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("SMS: Twilio error (code=%d, msg=%s)", msgResp.ErrorCode, msgResp.ErrorMessage)
		return fmt.Errorf("Twilio API error: %d - %s", msgResp.ErrorCode, msgResp.ErrorMessage)
	}

	c.logger.Printf("SMS: sent successfully to %s (sid=%s, status=%s)", to, msgResp.SID, msgResp.Status)
	return nil
}

// NotifyDecision texts the recruiter the outcome of a finished screening call.
func (c *SMSClient) NotifyDecision(ctx context.Context, to, candidateName, jobTitle, decision string, averageScore float64) error {
	if candidateName == "" {
		candidateName = "Candidate"
	}
	body := fmt.Sprintf("Prescreen: %s finished the screening for %s. Decision: %s (average %.1f/10).",
		candidateName, jobTitle, decision, averageScore)
	return c.SendSMS(ctx, to, body)
}

// NotifyMissedInterview texts the recruiter that a candidate never completed
// the screening, so a reschedule is needed.
func (c *SMSClient) NotifyMissedInterview(ctx context.Context, to, candidateName, jobTitle, reason string) error {
	if candidateName == "" {
		candidateName = "Candidate"
	}
	body := fmt.Sprintf("Prescreen: %s did not complete the screening for %s (%s). Please reschedule.",
		candidateName, jobTitle, reason)
	return c.SendSMS(ctx, to, body)
}
