package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strings"
)

const (
	DefaultEndpoint   = "https://api.twilio.com"
	DefaultAPIVersion = "2010-04-01"

	// Version is reported in the User-Agent header.
	Version = "1.4.0"

	messageSent = "Message sent"
)

var userAgent = fmt.Sprintf("sms-gateway/%s (go/%s)", Version, strings.TrimPrefix(runtime.Version(), "go"))

// Config holds the stored gateway settings. From, AccountSID and AuthToken are required.
type Config struct {
	From       string
	AccountSID string
	AuthToken  string
	Endpoint   string
	APIVersion string
}

var _ Gateway = (*TwilioGateway)(nil)

// TwilioGateway sends SMS messages through the Twilio REST API.
type TwilioGateway struct {
	client     HTTPClient
	config     Config
	requestURL string
}

func NewTwilioGateway(cfg Config) (*TwilioGateway, error) {
	return NewTwilioGatewayWithClient(cfg, NewRestyClient())
}

func NewTwilioGatewayWithClient(cfg Config, client HTTPClient) (*TwilioGateway, error) {
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)

	var missing []string
	if cfg.From == "" {
		missing = append(missing, "from")
	}
	if cfg.AccountSID == "" {
		missing = append(missing, "client")
	}
	if cfg.AuthToken == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if u, err := url.ParseRequestURI(endpoint); err != nil || u.Host == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid endpoint %q", cfg.Endpoint)}
	}
	cfg.Endpoint = endpoint

	cfg.APIVersion = strings.Trim(strings.TrimSpace(cfg.APIVersion), "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	if client == nil {
		return nil, &ConfigurationError{Reason: "http client is required"}
	}

	return &TwilioGateway{
		client:     client,
		config:     cfg,
		requestURL: cfg.Endpoint + "/" + cfg.APIVersion,
	}, nil
}

// From returns the configured default sender.
func (g *TwilioGateway) From() string {
	return g.config.From
}

// Notify sends message as an SMS. Provider rejections come back as an unsuccessful
// Response; only transport failures are returned as errors.
func (g *TwilioGateway) Notify(ctx context.Context, message string, opts Options) (*Response, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrInvalidMessage
	}

	call := g.resolve(opts)

	form := url.Values{}
	form.Set("From", call.From)
	form.Set("To", call.To)
	form.Set("Body", message)

	return g.commit(ctx, MethodPost, g.buildURL("Accounts", call.AccountSID, "SMS", "Messages.json"), call, form)
}

type callConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// resolve merges per-call overrides over the stored config without touching it.
func (g *TwilioGateway) resolve(opts Options) callConfig {
	return callConfig{
		AccountSID: firstNonEmpty(opts.AccountSID, g.config.AccountSID),
		AuthToken:  firstNonEmpty(opts.AuthToken, g.config.AuthToken),
		From:       firstNonEmpty(opts.From, g.config.From),
		To:         strings.TrimSpace(opts.To),
	}
}

func (g *TwilioGateway) buildURL(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return g.requestURL + "/" + strings.Join(escaped, "/")
}

func (g *TwilioGateway) commit(ctx context.Context, method Method, requestURL string, call callConfig, form url.Values) (*Response, error) {
	rawResponse, err := g.client.Do(ctx, &HTTPRequest{
		Method:   method,
		URL:      requestURL,
		Username: call.AccountSID,
		Password: call.AuthToken,
		Headers: map[string]string{
			"Accept-Charset": "utf-8",
			"Content-Type":   "application/x-www-form-urlencoded",
			"User-Agent":     userAgent,
		},
		Form: form,
	})
	if err != nil {
		return nil, err
	}

	if rawResponse.StatusCode == http.StatusCreated {
		raw, ok := parseResponse(rawResponse.Body)
		if !ok {
			raw = map[string]any{"body": string(rawResponse.Body)}
		}
		return NewResponse(true, messageSent, raw).withStatusCode(rawResponse.StatusCode), nil
	}

	raw, message := responseError(rawResponse.Body)
	return NewResponse(false, message, raw).withStatusCode(rawResponse.StatusCode), nil
}

func parseResponse(body []byte) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal(trimmed, &parsed); err != nil || parsed == nil {
		return nil, false
	}
	return parsed, true
}

func responseError(body []byte) (map[string]any, string) {
	parsed, ok := parseResponse(body)
	if !ok {
		msg := jsonError(body)
		return map[string]any{"message": msg}, msg
	}

	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return parsed, msg
	}
	return parsed, jsonError(body)
}

func jsonError(body []byte) string {
	return fmt.Sprintf("API Response not valid. (Raw response API %s)", body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
