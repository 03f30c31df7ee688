package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
)

type fakeHTTPClient struct {
	mu       sync.Mutex
	requests []*HTTPRequest
	doFn     func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

func (f *fakeHTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.doFn != nil {
		return f.doFn(ctx, req)
	}
	return &HTTPResponse{StatusCode: http.StatusCreated, Body: []byte(`{"sid":"SM1"}`)}, nil
}

func (f *fakeHTTPClient) last(t *testing.T) *HTTPRequest {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return f.requests[len(f.requests)-1]
}

func respondWith(statusCode int, body string) func(context.Context, *HTTPRequest) (*HTTPResponse, error) {
	return func(context.Context, *HTTPRequest) (*HTTPResponse, error) {
		return &HTTPResponse{StatusCode: statusCode, Body: []byte(body)}, nil
	}
}

func validConfig() Config {
	return Config{
		From:       "+15551234567",
		AccountSID: "ACxxx",
		AuthToken:  "secret",
	}
}

func TestNewTwilioGatewayMissingKeys(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		cfg         Config
		wantMissing []string
	}{
		{name: "missing from", cfg: Config{AccountSID: "ACxxx", AuthToken: "secret"}, wantMissing: []string{"from"}},
		{name: "missing client", cfg: Config{From: "+15551234567", AuthToken: "secret"}, wantMissing: []string{"client"}},
		{name: "missing token", cfg: Config{From: "+15551234567", AccountSID: "ACxxx"}, wantMissing: []string{"token"}},
		{name: "blank values count as missing", cfg: Config{From: " ", AccountSID: "\t", AuthToken: ""}, wantMissing: []string{"from", "client", "token"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g, err := NewTwilioGatewayWithClient(tc.cfg, &fakeHTTPClient{})
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if g != nil {
				t.Fatal("expected nil gateway")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("errors.Is(err, ErrConfiguration) = false, err = %v", err)
			}

			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %T", err)
			}
			if strings.Join(cfgErr.Missing, ",") != strings.Join(tc.wantMissing, ",") {
				t.Fatalf("Missing = %v, want %v", cfgErr.Missing, tc.wantMissing)
			}
		})
	}
}

func TestNewTwilioGatewayInvalidEndpointAndClient(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Endpoint = "not a url"
	if _, err := NewTwilioGatewayWithClient(cfg, &fakeHTTPClient{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("invalid endpoint error = %v, want ErrConfiguration", err)
	}

	if _, err := NewTwilioGatewayWithClient(validConfig(), nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("nil client error = %v, want ErrConfiguration", err)
	}
}

func TestTwilioGatewayNotifySuccess(t *testing.T) {
	t.Parallel()

	client := &fakeHTTPClient{doFn: respondWith(http.StatusCreated, `{"sid":"SM123","status":"queued"}`)}
	g, err := NewTwilioGatewayWithClient(validConfig(), client)
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	resp, err := g.Notify(context.Background(), "Hello", Options{To: "+15559876543"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !resp.Success() {
		t.Fatal("Success() = false, want true")
	}
	if resp.Message() != "Message sent" {
		t.Fatalf("Message() = %q, want %q", resp.Message(), "Message sent")
	}
	if resp.StatusCode() != http.StatusCreated {
		t.Fatalf("StatusCode() = %d, want 201", resp.StatusCode())
	}
	if resp.ProviderID() != "SM123" {
		t.Fatalf("ProviderID() = %q, want SM123", resp.ProviderID())
	}

	req := client.last(t)
	if req.Method != MethodPost {
		t.Fatalf("method = %s, want POST", req.Method)
	}
	wantURL := "https://api.twilio.com/2010-04-01/Accounts/ACxxx/SMS/Messages.json"
	if req.URL != wantURL {
		t.Fatalf("url = %q, want %q", req.URL, wantURL)
	}
	if req.Username != "ACxxx" || req.Password != "secret" {
		t.Fatalf("basic auth = (%q, %q), want (ACxxx, secret)", req.Username, req.Password)
	}
	if got := req.Headers["Content-Type"]; got != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := req.Headers["Accept-Charset"]; got != "utf-8" {
		t.Fatalf("Accept-Charset = %q", got)
	}
	wantUA := "sms-gateway/" + Version + " (go/" + strings.TrimPrefix(runtime.Version(), "go") + ")"
	if got := req.Headers["User-Agent"]; got != wantUA {
		t.Fatalf("User-Agent = %q, want %q", got, wantUA)
	}
	if strings.Contains(req.Headers["User-Agent"], "go/go") {
		t.Fatalf("User-Agent = %q repeats the runtime prefix", req.Headers["User-Agent"])
	}

	if len(req.Form) != 3 {
		t.Fatalf("form fields = %v, want exactly From, To, Body", req.Form)
	}
	if req.Form.Get("From") != "+15551234567" || req.Form.Get("To") != "+15559876543" || req.Form.Get("Body") != "Hello" {
		t.Fatalf("form = %v", req.Form)
	}
}

func TestTwilioGatewayNotifySuccessWithNonJSONBody(t *testing.T) {
	t.Parallel()

	g, err := NewTwilioGatewayWithClient(validConfig(), &fakeHTTPClient{doFn: respondWith(http.StatusCreated, "created")})
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	resp, err := g.Notify(context.Background(), "Hello", Options{To: "+15559876543"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !resp.Success() {
		t.Fatal("Success() = false, want true")
	}
	if got := resp.Raw()["body"]; got != "created" {
		t.Fatalf("raw body = %v, want created", got)
	}
}

func TestResponseRawIsDeepCopy(t *testing.T) {
	t.Parallel()

	body := `{"sid":"SM1","subresource_uris":{"media":"/media.json"},"tags":["a","b"]}`
	g, err := NewTwilioGatewayWithClient(validConfig(), &fakeHTTPClient{doFn: respondWith(http.StatusCreated, body)})
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	resp, err := g.Notify(context.Background(), "Hello", Options{To: "+15559876543"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	raw := resp.Raw()
	raw["sid"] = "changed"
	raw["subresource_uris"].(map[string]any)["media"] = "changed"
	raw["tags"].([]any)[0] = "changed"

	again := resp.Raw()
	if again["sid"] != "SM1" {
		t.Fatalf("sid = %v, want SM1", again["sid"])
	}
	if got := again["subresource_uris"].(map[string]any)["media"]; got != "/media.json" {
		t.Fatalf("nested map value = %v, want /media.json", got)
	}
	if got := again["tags"].([]any)[0]; got != "a" {
		t.Fatalf("nested slice value = %v, want a", got)
	}
	if resp.ProviderID() != "SM1" {
		t.Fatalf("ProviderID() = %q, want SM1", resp.ProviderID())
	}
}

func TestTwilioGatewayNotifyFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		statusCode  int
		body        string
		wantMessage string
	}{
		{
			name:        "provider message is surfaced",
			statusCode:  http.StatusBadRequest,
			body:        `{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`,
			wantMessage: "The 'To' number is not a valid phone number.",
		},
		{
			name:        "non json body is synthesized",
			statusCode:  http.StatusInternalServerError,
			body:        "oops",
			wantMessage: "API Response not valid. (Raw response API oops)",
		},
		{
			name:        "json without message is synthesized",
			statusCode:  http.StatusUnauthorized,
			body:        `{"code":20003}`,
			wantMessage: `API Response not valid. (Raw response API {"code":20003})`,
		},
		{
			name:        "other 2xx is a failure",
			statusCode:  http.StatusOK,
			body:        `{"message":"unexpected status"}`,
			wantMessage: "unexpected status",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g, err := NewTwilioGatewayWithClient(validConfig(), &fakeHTTPClient{doFn: respondWith(tc.statusCode, tc.body)})
			if err != nil {
				t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
			}

			resp, err := g.Notify(context.Background(), "Hello", Options{To: "+15559876543"})
			if err != nil {
				t.Fatalf("Notify() error = %v", err)
			}
			if resp.Success() {
				t.Fatal("Success() = true, want false")
			}
			if resp.Message() != tc.wantMessage {
				t.Fatalf("Message() = %q, want %q", resp.Message(), tc.wantMessage)
			}
			if resp.StatusCode() != tc.statusCode {
				t.Fatalf("StatusCode() = %d, want %d", resp.StatusCode(), tc.statusCode)
			}
			if resp.Raw()["message"] == nil && tc.body != `{"code":20003}` {
				t.Fatalf("raw = %v, want message key", resp.Raw())
			}
		})
	}
}

func TestTwilioGatewayNotifyOverridesAreCallScoped(t *testing.T) {
	t.Parallel()

	client := &fakeHTTPClient{}
	g, err := NewTwilioGatewayWithClient(validConfig(), client)
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	_, err = g.Notify(context.Background(), "first", Options{
		AccountSID: "ACother",
		AuthToken:  "other-secret",
		From:       "+15550000000",
		To:         "+15559876543",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	req := client.last(t)
	if req.Username != "ACother" || req.Password != "other-secret" {
		t.Fatalf("override auth = (%q, %q)", req.Username, req.Password)
	}
	if !strings.Contains(req.URL, "/Accounts/ACother/") {
		t.Fatalf("override url = %q", req.URL)
	}
	if req.Form.Get("From") != "+15550000000" {
		t.Fatalf("override From = %q", req.Form.Get("From"))
	}

	_, err = g.Notify(context.Background(), "second", Options{})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	req = client.last(t)
	if req.Username != "ACxxx" || req.Password != "secret" {
		t.Fatalf("auth leaked from previous call: (%q, %q)", req.Username, req.Password)
	}
	if !strings.Contains(req.URL, "/Accounts/ACxxx/") {
		t.Fatalf("url leaked from previous call: %q", req.URL)
	}
	if req.Form.Get("From") != "+15551234567" {
		t.Fatalf("From leaked from previous call: %q", req.Form.Get("From"))
	}
	if to, ok := req.Form["To"]; !ok || len(to) != 1 || to[0] != "" {
		t.Fatalf("To = %v, want empty string default", req.Form["To"])
	}
}

func TestTwilioGatewayNotifyConcurrentOverrides(t *testing.T) {
	t.Parallel()

	client := &fakeHTTPClient{}
	g, err := NewTwilioGatewayWithClient(validConfig(), client)
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sid := "ACxxx"
		if i%2 == 0 {
			sid = "ACother"
		}
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			if _, err := g.Notify(context.Background(), "hi", Options{AccountSID: sid, To: "+1"}); err != nil {
				t.Errorf("Notify() error = %v", err)
			}
		}(sid)
	}
	wg.Wait()

	client.mu.Lock()
	defer client.mu.Unlock()
	for _, req := range client.requests {
		if !strings.Contains(req.URL, "/Accounts/"+req.Username+"/") {
			t.Fatalf("url %q does not match auth user %q", req.URL, req.Username)
		}
	}
}

func TestTwilioGatewayNotifyRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	client := &fakeHTTPClient{}
	g, err := NewTwilioGatewayWithClient(validConfig(), client)
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	if _, err := g.Notify(context.Background(), "  ", Options{To: "+15559876543"}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("Notify() error = %v, want ErrInvalidMessage", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("requests = %d, want 0", len(client.requests))
	}
}

func TestTwilioGatewayNotifyTransportErrorPropagates(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	g, err := NewTwilioGatewayWithClient(validConfig(), &fakeHTTPClient{
		doFn: func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			return nil, &TransportError{URL: req.URL, Cause: cause}
		},
	})
	if err != nil {
		t.Fatalf("NewTwilioGatewayWithClient() error = %v", err)
	}

	resp, err := g.Notify(context.Background(), "Hello", Options{To: "+15559876543"})
	if resp != nil {
		t.Fatalf("response = %+v, want nil", resp)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false")
	}
}

func TestTwilioGatewayNotifyEndToEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/2010-04-01/Accounts/ACxxx/SMS/Messages.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ACxxx" || pass != "secret" {
			t.Errorf("basic auth = (%q, %q, %v)", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("To") != "+15559876543" || r.PostForm.Get("Body") != "Hello" {
			t.Errorf("form = %v", r.PostForm)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer server.Close()

	cfg := validConfig()
	cfg.Endpoint = server.URL
	g, err := NewTwilioGateway(cfg)
	if err != nil {
		t.Fatalf("NewTwilioGateway() error = %v", err)
	}

	resp, err := g.Notify(context.Background(), "Hello", Options{To: "+15559876543"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !resp.Success() || resp.ProviderID() != "SM42" {
		t.Fatalf("response = success:%v sid:%q", resp.Success(), resp.ProviderID())
	}
}
