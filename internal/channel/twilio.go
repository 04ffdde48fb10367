package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	// BaseURL defaults to https://api.twilio.com
	BaseURL string
	Timeout time.Duration
}

// TwilioSender implements SMSSender against the Twilio Messages REST API.
type TwilioSender struct {
	cfg    TwilioConfig
	client *http.Client
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewTwilioSender(cfg TwilioConfig) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio: account sid and auth token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TwilioSender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (t *TwilioSender) SendSMS(ctx context.Context, msg SMSMessage) (model.Receipt, error) {
	if msg.From == "" {
		return model.Receipt{}, appErrors.NewProvider("twilio", errors.New("no sender phone number configured"))
	}
	to := FormatPhoneNumber(msg.To)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", msg.From)
	form.Set("Body", msg.Message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(t.cfg.BaseURL, "/"), url.PathEscape(t.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Receipt{}, appErrors.NewProvider("twilio", err)
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return model.Receipt{}, appErrors.NewProvider("twilio", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return model.Receipt{}, appErrors.NewProvider("twilio",
				fmt.Errorf("status %d: code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message))
		}
		return model.Receipt{}, appErrors.NewProvider("twilio", fmt.Errorf("status %d", resp.StatusCode))
	}

	var sent twilioMessage
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return model.Receipt{}, appErrors.NewProvider("twilio", fmt.Errorf("decode response: %w", err))
	}
	return model.Receipt{MessageID: sent.SID, Status: sent.Status, To: sent.To, From: sent.From}, nil
}
