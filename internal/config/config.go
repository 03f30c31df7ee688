package config

import (
	"fmt"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/sms-gateway/internal/gateway"
)

type Config struct {
	TwilioFrom       string `env:"TWILIO_FROM,required=true"`
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID,required=true"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN,required=true"`
	TwilioEndpoint   string `env:"TWILIO_ENDPOINT,default=https://api.twilio.com"`
	TwilioAPIVersion string `env:"TWILIO_API_VERSION,default=2010-04-01"`
	DatabaseDSN      string `env:"DATABASE_DSN"`
	RedisURL         string `env:"REDIS_URL"`
	RateLimitPerSec  int    `env:"RATE_LIMIT_PER_SEC,default=1"`
	APIPort          int    `env:"API_PORT,default=8080"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`
	LogFile          string `env:"LOG_FILE"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.RateLimitPerSec <= 0 {
		return nil, fmt.Errorf("failed to load config: RATE_LIMIT_PER_SEC must be positive, got %d", cfg.RateLimitPerSec)
	}
	return &cfg, nil
}

// Gateway returns the stored gateway settings.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		From:       c.TwilioFrom,
		AccountSID: c.TwilioAccountSID,
		AuthToken:  c.TwilioAuthToken,
		Endpoint:   c.TwilioEndpoint,
		APIVersion: c.TwilioAPIVersion,
	}
}
