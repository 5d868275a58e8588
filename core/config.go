package core

import (
	"fmt"
	"strings"
	"time"
)

type DispatcherConfig struct {
	TimeoutMS       int    `koanf:"timeout_ms" mapstructure:"timeout_ms"`
	MaxRetries      int    `koanf:"max_retries" mapstructure:"max_retries"`
	RetryDelayMS    int    `koanf:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	Backoff         string `koanf:"backoff" mapstructure:"backoff"`
	MaxRetryDelayMS int    `koanf:"max_retry_delay_ms" mapstructure:"max_retry_delay_ms"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
	SignaturePrefix string `koanf:"signature_prefix" mapstructure:"signature_prefix"`
}

type SyncConfig struct {
	ClampProgress bool   `koanf:"clamp_progress" mapstructure:"clamp_progress"`
	JobID         string `koanf:"job_id" mapstructure:"job_id"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Dispatcher  DispatcherConfig `koanf:"dispatcher" mapstructure:"dispatcher"`
	Sync        SyncConfig       `koanf:"sync" mapstructure:"sync"`
}

const DefaultSyncJobID = "integrations.sync.run"

func DefaultConfig() Config {
	return Config{
		ServiceName: "integrations",
		Dispatcher: DispatcherConfig{
			TimeoutMS:       30_000,
			MaxRetries:      3,
			RetryDelayMS:    1_000,
			Backoff:         BackoffFixed,
			MaxRetryDelayMS: 30_000,
			SignatureHeader: DefaultSignatureHeader,
			SignaturePrefix: DefaultSignaturePrefix,
		},
		Sync: SyncConfig{
			ClampProgress: true,
			JobID:         DefaultSyncJobID,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dispatcher.TimeoutMS <= 0 {
		return fmt.Errorf("core: dispatcher.timeout_ms must be > 0")
	}
	if c.Dispatcher.MaxRetries < 0 {
		return fmt.Errorf("core: dispatcher.max_retries must be >= 0")
	}
	if c.Dispatcher.RetryDelayMS < 0 {
		return fmt.Errorf("core: dispatcher.retry_delay_ms must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Dispatcher.Backoff)) {
	case "", BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("core: dispatcher.backoff %q is not supported", c.Dispatcher.Backoff)
	}
	return nil
}

// DeliveryDefaults converts the dispatcher section into the defaults applied
// to every webhook registration.
func (c Config) DeliveryDefaults() WebhookDeliveryConfig {
	header := strings.TrimSpace(c.Dispatcher.SignatureHeader)
	if header == "" {
		header = DefaultSignatureHeader
	}
	delay := time.Duration(c.Dispatcher.RetryDelayMS) * time.Millisecond
	out := WebhookDeliveryConfig{
		SignatureHeader: header,
		SignaturePrefix: strings.TrimSpace(c.Dispatcher.SignaturePrefix),
		Timeout:         time.Duration(c.Dispatcher.TimeoutMS) * time.Millisecond,
		MaxRetries:      c.Dispatcher.MaxRetries,
		RetryDelay:      delay,
	}
	if strings.EqualFold(strings.TrimSpace(c.Dispatcher.Backoff), BackoffExponential) {
		out.RetryPolicy = BackoffPolicy(BackoffExponential, delay, time.Duration(c.Dispatcher.MaxRetryDelayMS)*time.Millisecond)
	}
	return out
}

func (c Config) SyncJobID() string {
	if id := strings.TrimSpace(c.Sync.JobID); id != "" {
		return id
	}
	return DefaultSyncJobID
}
