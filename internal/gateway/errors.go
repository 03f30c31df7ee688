package gateway

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	ErrConfiguration  = errors.New("gateway configuration error")
	ErrInvalidMessage = errors.New("message body is required")
)

// ConfigurationError reports missing or invalid gateway configuration keys.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, ErrConfiguration.Error())
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required keys ["+strings.Join(e.Missing, ", ")+"]")
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		parts = append(parts, reason)
	}

	return strings.Join(parts, ": ")
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TransportError wraps network-level failures: the request never produced a provider answer.
type TransportError struct {
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "transport error"
	if e.URL != "" {
		msg += ": " + e.URL
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a transport failure was a timeout or temporary network error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
