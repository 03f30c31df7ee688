package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Decision is the outcome of one admission check. RetryAfter is set only when
// the send was refused.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter admits outbound sends per sender number. It never blocks: a
// refused send is reported immediately so callers can answer 429.
type RateLimiter interface {
	Allow(ctx context.Context, sender string) (Decision, error)
}

// NormalizeKey trims the sender and rejects blank keys.
func NormalizeKey(sender string) (string, error) {
	key := strings.TrimSpace(sender)
	if key == "" {
		return "", fmt.Errorf("sender is required")
	}
	return key, nil
}
