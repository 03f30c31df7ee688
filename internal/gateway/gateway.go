package gateway

import "context"

// Gateway is the uniform notification capability exposed by every provider adapter.
type Gateway interface {
	Notify(ctx context.Context, message string, opts Options) (*Response, error)
}

// Options carries per-call overrides. Empty fields fall back to the gateway configuration.
type Options struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Response is the normalized result of a single Notify call.
type Response struct {
	success    bool
	message    string
	raw        map[string]any
	statusCode int
}

// NewResponse maps a provider outcome into a Response.
func NewResponse(success bool, message string, raw map[string]any) *Response {
	return &Response{
		success: success,
		message: message,
		raw:     raw,
	}
}

func (r *Response) withStatusCode(statusCode int) *Response {
	r.statusCode = statusCode
	return r
}

func (r *Response) Success() bool {
	if r == nil {
		return false
	}
	return r.success
}

func (r *Response) Message() string {
	if r == nil {
		return ""
	}
	return r.message
}

// Raw returns a deep copy of the provider payload.
func (r *Response) Raw() map[string]any {
	if r == nil || r.raw == nil {
		return nil
	}
	return cloneMap(r.raw)
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

// cloneValue copies the container types produced by encoding/json.
func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// StatusCode is the HTTP status the provider answered with, zero when unknown.
func (r *Response) StatusCode() int {
	if r == nil {
		return 0
	}
	return r.statusCode
}

// ProviderID returns the provider message identifier ("sid") when present.
func (r *Response) ProviderID() string {
	if r == nil {
		return ""
	}
	if sid, ok := r.raw["sid"].(string); ok {
		return sid
	}
	return ""
}
