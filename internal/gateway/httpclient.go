package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultRequestTimeout = 80 * time.Second
)

// Method is an HTTP verb understood by HTTPClient.
type Method int

const (
	MethodGet Method = iota + 1
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
)

var methodNames = map[Method]string{
	MethodGet:    resty.MethodGet,
	MethodPost:   resty.MethodPost,
	MethodPut:    resty.MethodPut,
	MethodPatch:  resty.MethodPatch,
	MethodDelete: resty.MethodDelete,
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// HTTPRequest describes a single provider call.
type HTTPRequest struct {
	Method   Method
	URL      string
	Username string
	Password string
	Headers  map[string]string
	Form     url.Values
}

// HTTPResponse is the provider answer. Non-2xx statuses are not errors.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// HTTPClient is the transport collaborator used by gateways.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

var _ HTTPClient = (*RestyClient)(nil)

// RestyClient implements HTTPClient on top of resty.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient builds a client with a 30s connect timeout, an 80s total timeout,
// certificate verification and no retries.
func NewRestyClient() *RestyClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	client := resty.NewWithClient(&http.Client{
		Transport: transport,
		Timeout:   DefaultRequestTimeout,
	})

	return NewRestyClientWithClient(client)
}

func NewRestyClientWithClient(client *resty.Client) *RestyClient {
	if client == nil {
		return NewRestyClient()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultRequestTimeout)
	}
	client.SetRetryCount(0)

	return &RestyClient{client: client}
}

func (c *RestyClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("http client is not initialized")
	}
	if req == nil {
		return nil, fmt.Errorf("http request is required")
	}

	method, ok := methodNames[req.Method]
	if !ok {
		return nil, fmt.Errorf("unsupported http method %s", req.Method)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := c.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers)
	if req.Username != "" || req.Password != "" {
		r.SetBasicAuth(req.Username, req.Password)
	}
	if req.Form != nil {
		r.SetBody(req.Form.Encode())
	}

	response, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, &TransportError{URL: req.URL, Cause: err}
	}
	if response == nil {
		return nil, &TransportError{URL: req.URL, Cause: fmt.Errorf("empty response")}
	}

	return &HTTPResponse{
		StatusCode: response.StatusCode(),
		Body:       response.Body(),
		Header:     response.Header(),
	}, nil
}
