// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// SimConfig holds configuration for the simulated analysis service.
type SimConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)

	// Engine pacing
	QueueFor      time.Duration
	PauseFor      time.Duration
	ExecFor       time.Duration
	CancelLag     time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
	LayerURLBase  string
}

// LoadSimConfig loads service configuration from environment variables.
func LoadSimConfig() *SimConfig {
	return &SimConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretEnv("API_KEY_FILE", "API_KEY"),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),

		QueueFor:      GetDurationEnv("SIM_QUEUE_FOR", 500*time.Millisecond),
		PauseFor:      GetDurationEnv("SIM_PAUSE_FOR", time.Second),
		ExecFor:       GetDurationEnv("SIM_EXEC_FOR", 2*time.Second),
		CancelLag:     GetDurationEnv("SIM_CANCEL_LAG", 300*time.Millisecond),
		Retention:     GetDurationEnv("SIM_RETENTION", 10*time.Minute),
		SweepInterval: GetDurationEnv("SIM_SWEEP_INTERVAL", time.Minute),
		LayerURLBase:  GetEnv("SIM_LAYER_URL_BASE", ""),
	}
}

// ClientConfig holds configuration for the analysis CLI. Flags override
// these values.
type ClientConfig struct {
	ServiceURL       string
	APIKey           string
	RequestTimeout   time.Duration
	RateLimit        int // requests per second against the service
	PollInterval     time.Duration
	MaxStatusRetries int

	// Webhook notifications. Disabled when WebhookURL is empty.
	WebhookURL        string
	WebhookSigningKey string
}

// LoadClientConfig loads CLI configuration from environment variables.
func LoadClientConfig() *ClientConfig {
	return &ClientConfig{
		ServiceURL:        GetEnv("GEOTASK_SERVICE_URL", "http://localhost:8080"),
		APIKey:            GetSecretEnv("GEOTASK_API_KEY_FILE", "GEOTASK_API_KEY"),
		RequestTimeout:    GetDurationEnv("GEOTASK_REQUEST_TIMEOUT", 30*time.Second),
		RateLimit:         GetIntEnv("GEOTASK_RATE_LIMIT", 10),
		PollInterval:      GetDurationEnv("GEOTASK_POLL_INTERVAL", 500*time.Millisecond),
		MaxStatusRetries:  GetIntEnv("GEOTASK_MAX_RETRIES", 5),
		WebhookURL:        GetEnv("GEOTASK_WEBHOOK_URL", ""),
		WebhookSigningKey: GetSecretEnv("GEOTASK_WEBHOOK_SIGNING_KEY_FILE", "GEOTASK_WEBHOOK_SIGNING_KEY"),
	}
}
