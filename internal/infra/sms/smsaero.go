// Package sms delivers entry codes through the SMS Aero HTTP gateway.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/ivankudzin/phoneauth/internal/infra/httpclient"
	notifysvc "github.com/ivankudzin/phoneauth/internal/services/notify"
)

const (
	providerName   = "smsaero"
	defaultBaseURL = "https://gate.smsaero.ru/v2"
	defaultSign    = "SMS Aero"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

type Config struct {
	Email   string
	APIKey  string
	BaseURL string
	Sign    string
}

// Client sends text messages via the SMS Aero v2 API. Requests authenticate
// with HTTP basic auth (account email, API key).
type Client struct {
	email      string
	apiKey     string
	baseURL    string
	sign       string
	httpClient *http.Client
}

type sendResponse struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
	Data    *struct {
		ID           int64  `json:"id"`
		Status       int    `json:"status"`
		ExtendStatus string `json:"extendStatus"`
	} `json:"data"`
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	sign := strings.TrimSpace(cfg.Sign)
	if sign == "" {
		sign = defaultSign
	}
	if httpClient == nil {
		httpClient = httpclient.New(defaultTimeout)
	}

	return &Client{
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		sign:       sign,
		httpClient: httpClient,
	}
}

// Send submits message for phone. The message body is never logged here.
func (c *Client) Send(ctx context.Context, phone int64, message string) (notifysvc.Response, error) {
	if c.email == "" || c.apiKey == "" {
		return notifysvc.Response{}, fmt.Errorf("%w: smsaero credentials not configured", notifysvc.ErrDelivery)
	}

	number, err := E164Digits(phone)
	if err != nil {
		return notifysvc.Response{}, err
	}

	query := url.Values{}
	query.Set("number", number)
	query.Set("text", message)
	query.Set("sign", c.sign)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sms/send?"+query.Encode(), nil)
	if err != nil {
		return notifysvc.Response{}, fmt.Errorf("build smsaero request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return notifysvc.Response{}, fmt.Errorf("%w: smsaero request: %w", notifysvc.ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return notifysvc.Response{}, fmt.Errorf("%w: smsaero status=%d body=%s", notifysvc.ErrDelivery, resp.StatusCode, string(b))
	}

	var payload sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return notifysvc.Response{}, fmt.Errorf("%w: decode smsaero response: %w", notifysvc.ErrDelivery, err)
	}
	if !payload.Success {
		reason := "unknown error"
		if payload.Message != nil && *payload.Message != "" {
			reason = *payload.Message
		}
		return notifysvc.Response{}, fmt.Errorf("%w: smsaero rejected message: %s", notifysvc.ErrDelivery, reason)
	}

	res := notifysvc.Response{
		Provider: providerName,
		Accepted: true,
	}
	if payload.Data != nil {
		res.MessageID = strconv.FormatInt(payload.Data.ID, 10)
		res.Status = payload.Data.ExtendStatus
	}

	return res, nil
}

// E164Digits renders phone in E.164 without the leading plus, which is the
// form SMS gateways expect in the number field.
func E164Digits(phone int64) (string, error) {
	if phone <= 0 {
		return "", notifysvc.ErrInvalidPhone
	}

	parsed, err := phonenumbers.Parse("+"+strconv.FormatInt(phone, 10), "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", notifysvc.ErrInvalidPhone, err)
	}

	return strings.TrimPrefix(phonenumbers.Format(parsed, phonenumbers.E164), "+"), nil
}
