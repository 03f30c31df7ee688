package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestRestyClientDo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Accept-Charset"); got != "utf-8" {
			t.Errorf("Accept-Charset = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q", got)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ACxxx" || pass != "secret" {
			t.Errorf("basic auth = (%q, %q, %v)", user, pass, ok)
		}

		body, _ := io.ReadAll(r.Body)
		values, err := url.ParseQuery(string(body))
		if err != nil {
			t.Errorf("ParseQuery() error = %v", err)
		}
		if values.Get("Body") != "hi there" {
			t.Errorf("Body = %q", values.Get("Body"))
		}

		w.Header().Set("X-Request-Id", "req-1")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad"}`))
	}))
	defer server.Close()

	client := NewRestyClient()
	resp, err := client.Do(context.Background(), &HTTPRequest{
		Method:   MethodPost,
		URL:      server.URL,
		Username: "ACxxx",
		Password: "secret",
		Headers: map[string]string{
			"Accept-Charset": "utf-8",
			"Content-Type":   "application/x-www-form-urlencoded",
			"User-Agent":     "test-agent",
		},
		Form: url.Values{"Body": {"hi there"}},
	})
	if err != nil {
		t.Fatalf("Do() error = %v, non-2xx must not be an error", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", resp.StatusCode)
	}
	if string(resp.Body) != `{"message":"bad"}` {
		t.Fatalf("Body = %q", resp.Body)
	}
	if resp.Header.Get("X-Request-Id") != "req-1" {
		t.Fatalf("X-Request-Id = %q", resp.Header.Get("X-Request-Id"))
	}
}

func TestRestyClientDoTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	rc := resty.New()
	rc.SetTimeout(30 * time.Millisecond)

	client := NewRestyClientWithClient(rc)
	_, err := client.Do(context.Background(), &HTTPRequest{Method: MethodPost, URL: server.URL})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestRestyClientDoConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	serverURL := server.URL
	server.Close()

	_, err := NewRestyClient().Do(context.Background(), &HTTPRequest{Method: MethodGet, URL: serverURL})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
}

func TestRestyClientDoUnsupportedMethod(t *testing.T) {
	t.Parallel()

	_, err := NewRestyClient().Do(context.Background(), &HTTPRequest{Method: Method(99), URL: "http://example.invalid"})
	if err == nil {
		t.Fatal("expected error for unsupported method")
	}
}

func TestMethodString(t *testing.T) {
	t.Parallel()

	if MethodPost.String() != http.MethodPost {
		t.Fatalf("MethodPost.String() = %q", MethodPost.String())
	}
	if Method(0).String() != "Method(0)" {
		t.Fatalf("Method(0).String() = %q", Method(0).String())
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: &TransportError{Cause: context.DeadlineExceeded}, want: true},
		{name: "canceled", err: &TransportError{Cause: context.Canceled}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.want)
			}
		})
	}
}
