package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal outcome of a dispatch.
type Status string

const (
	StatusSent     Status = "SENT"
	StatusRejected Status = "REJECTED"
	StatusFailed   Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusSent, StatusRejected, StatusFailed:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// MaxSMSBody is the longest body Twilio accepts (concatenated segments).
const MaxSMSBody = 1600

// Message is an outbound SMS as submitted by a caller.
type Message struct {
	To   string
	From string
	Body string
}

func (m *Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}

	if bodyLen := len([]rune(m.Body)); bodyLen > MaxSMSBody {
		return fmt.Errorf("%w: body exceeds %d characters (got %d)", ErrValidation, MaxSMSBody, bodyLen)
	}

	return nil
}

// Dispatch records one provider call and its normalized outcome. Credentials are never stored.
type Dispatch struct {
	ID            string
	CorrelationID string
	AccountSID    string
	From          string
	To            string
	Body          string
	Status        Status
	Message       string
	StatusCode    *int
	ProviderSID   *string
	Error         *string
	CreatedAt     time.Time
}

func (d *Dispatch) Succeeded() bool {
	return d != nil && d.Status == StatusSent
}
