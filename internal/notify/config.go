package notify

import (
	"time"

	"geotask/internal/config"
	"geotask/pkg/backoff"
)

// Hardcoded delivery defaults - these rarely need tuning.
const (
	defaultQueueSize        = 256
	defaultWorkers          = 2
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// Config holds configuration for the webhook notifier.
type Config struct {
	WebhookURL string // destination for all events (required)
	SigningKey string // HMAC key for payload signing, empty = no signing

	QueueSize    int            // pending events buffer (default: 256)
	Workers      int            // concurrent delivery goroutines (default: 2)
	HTTPTimeout  time.Duration  // per-request timeout (default: 10s)
	MaxRetries   int            // retries per delivery on server errors (default: 3)
	RetryBackoff backoff.Policy // wait between delivery retries
}

// LoadConfigFromEnv loads notifier tuning from environment variables. The
// webhook destination and signing key are supplied by the caller.
func LoadConfigFromEnv() Config {
	cfg := Config{
		QueueSize:   config.GetIntEnv("NOTIFY_QUEUE_SIZE", defaultQueueSize),
		Workers:     config.GetIntEnv("NOTIFY_WORKERS", defaultWorkers),
		HTTPTimeout: config.GetDurationEnv("NOTIFY_HTTP_TIMEOUT", defaultHTTPTimeout),
		MaxRetries:  config.GetIntEnv("NOTIFY_MAX_RETRIES", defaultMaxRetries),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBackoff == (backoff.Policy{}) {
		c.RetryBackoff = backoff.Default()
	}
	return c
}
