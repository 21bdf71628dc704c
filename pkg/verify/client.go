// Package verify sends and checks one-time delivery codes through Twilio Verify.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/metrics"
)

const (
	defaultBaseURL              = "https://verify.twilio.com/v2"
	defaultCountryPrefix        = "+91"
	providerName                = "twilio_verify"
	statusApproved              = "approved"
	responseBodyReadLimit int64 = 2048
)

var (
	errAccountSIDRequired = errors.New("twilio account sid is required")
	errAuthTokenRequired  = errors.New("twilio auth token is required")
	errServiceSIDRequired = errors.New("twilio verify service sid is required")
)

// CodeSender is the OTP surface consumed by the order service.
type CodeSender interface {
	RequestCode(ctx context.Context, phone string) error
	CheckCode(ctx context.Context, phone, code string) (bool, error)
}

// Client talks to the Twilio Verify v2 API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accountSID    string
	authToken     string
	serviceSID    string
	countryPrefix string
	logger        *logger.Logger
	metrics       *metrics.GatewayMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records call outcomes on the provided gateway metrics.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient validates the Twilio credentials and builds the client.
func NewClient(cfg config.TwilioConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		accountSID:    strings.TrimSpace(cfg.AccountSID),
		authToken:     strings.TrimSpace(cfg.AuthToken),
		serviceSID:    strings.TrimSpace(cfg.VerifyServiceSID),
		countryPrefix: strings.TrimSpace(cfg.CountryPrefix),
		logger:        logg,
	}
	switch {
	case c.accountSID == "":
		return nil, errAccountSIDRequired
	case c.authToken == "":
		return nil, errAuthTokenRequired
	case c.serviceSID == "":
		return nil, errServiceSIDRequired
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.countryPrefix == "" {
		c.countryPrefix = defaultCountryPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// NormalizePhone returns the E.164 form of phone. Numbers without a leading
// "+" get the configured country prefix.
func (c *Client) NormalizePhone(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digitsOnly(trimmed[1:]), nil
	}
	digits := digitsOnly(trimmed)
	if digits == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number is invalid")
	}
	return c.countryPrefix + digits, nil
}

// RequestCode asks Twilio to text a fresh code to phone.
func (c *Client) RequestCode(ctx context.Context, phone string) error {
	to, err := c.NormalizePhone(phone)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("Channel", "sms")

	start := time.Now()
	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	_, err = c.post(ctx, "Verifications", form, &out)
	c.metrics.Observe(providerName, "request_code", time.Since(start), err)
	if err != nil {
		c.logError(ctx, "request_code", err)
		return err
	}
	c.logInfo(ctx, "request_code", map[string]any{"verification_sid": out.SID, "status": out.Status})
	return nil
}

// CheckCode reports whether code is the current approved code for phone.
// An expired or already consumed verification reports false without error.
func (c *Client) CheckCode(ctx context.Context, phone, code string) (bool, error) {
	to, err := c.NormalizePhone(phone)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(code) == "" {
		return false, nil
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("Code", strings.TrimSpace(code))

	start := time.Now()
	var out struct {
		Status string `json:"status"`
		Valid  bool   `json:"valid"`
	}
	status, err := c.post(ctx, "VerificationCheck", form, &out)
	if status == http.StatusNotFound {
		err = nil
	}
	c.metrics.Observe(providerName, "check_code", time.Since(start), err)
	if err != nil {
		c.logError(ctx, "check_code", err)
		return false, err
	}
	approved := out.Status == statusApproved
	c.logInfo(ctx, "check_code", map[string]any{"approved": approved})
	return approved, nil
}

func (c *Client) post(ctx context.Context, resource string, form url.Values, out any) (int, error) {
	endpoint := fmt.Sprintf("%s/Services/%s/%s", c.baseURL, url.PathEscape(c.serviceSID), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build twilio request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute twilio request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, cause, fmt.Sprintf("twilio %s failed", strings.ToLower(resource)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode twilio response")
	}
	return resp.StatusCode, nil
}

func (c *Client) logInfo(ctx context.Context, op string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	fields["operation"] = op
	c.logger.Info(c.logger.WithFields(ctx, fields), "twilio verify response")
}

func (c *Client) logError(ctx context.Context, op string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error(c.logger.WithField(ctx, "operation", op), "twilio verify call failed", err)
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
