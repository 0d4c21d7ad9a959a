package config

import (
	"time"

	"github.com/gyaneshwarpardhi/revnorm/internal/dispatch"
	"github.com/gyaneshwarpardhi/revnorm/internal/normalizer"
)

// Config is the top-level YAML structure.
type Config struct {
	Version    string         `yaml:"version" json:"version"`
	LogLevel   string         `yaml:"log_level" json:"log_level"`
	Normalizer NormalizerConf `yaml:"normalizer" json:"normalizer"`
	FX         FXConf         `yaml:"fx" json:"fx"`
	Dispatch   DispatchConf   `yaml:"dispatch" json:"dispatch"`
	Engine     EngineConf     `yaml:"engine" json:"engine"`
}

// NormalizerConf is the per-invocation currency settings.
type NormalizerConf struct {
	APIKey       string `yaml:"api_key" json:"api_key"`
	SourceMinor  bool   `yaml:"source_minor" json:"source_minor"`
	ZeroDecimals string `yaml:"zero_decimals" json:"zero_decimals"` // CSV; empty = built-in list
	BaseCurrency string `yaml:"base_currency" json:"base_currency"`
}

// FXConf configures the rate provider client.
type FXConf struct {
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	TimeoutMs  int    `yaml:"timeout_ms" json:"timeout_ms"`
	CacheTTLMs int    `yaml:"cache_ttl_ms" json:"cache_ttl_ms"` // 0 = fetch on every conversion
}

// DispatchConf selects and configures the outbound sink.
type DispatchConf struct {
	Mode                      string `yaml:"mode" json:"mode"`
	WebhookURL                string `yaml:"webhook_url" json:"webhook_url"`
	AmplitudeAPIKey           string `yaml:"amplitude_api_key" json:"amplitude_api_key"`
	AmplitudeEndpoint         string `yaml:"amplitude_endpoint" json:"amplitude_endpoint"`
	AmplitudeIdentifyEndpoint string `yaml:"amplitude_identify_endpoint" json:"amplitude_identify_endpoint"`
	TimeoutMs                 int    `yaml:"timeout_ms" json:"timeout_ms"`
}

// EngineConf holds tunable concurrency and retry settings.
type EngineConf struct {
	Workers        int `yaml:"workers" json:"workers"`
	QueueDepth     int `yaml:"queue_depth" json:"queue_depth"`
	EventTimeoutMs int `yaml:"event_timeout_ms" json:"event_timeout_ms"`
	FXMaxRetries   int `yaml:"fx_max_retries" json:"fx_max_retries"`
	FXRetryBaseMs  int `yaml:"fx_retry_base_ms" json:"fx_retry_base_ms"`
}

// Settings converts the section into normalizer settings.
func (c NormalizerConf) Settings() normalizer.Settings {
	return normalizer.Settings{
		APIKey:       c.APIKey,
		SourceMinor:  c.SourceMinor,
		ZeroDecimals: c.ZeroDecimals,
		BaseCurrency: c.BaseCurrency,
	}
}

// Settings converts the section into dispatch settings.
func (c DispatchConf) Settings() dispatch.Settings {
	return dispatch.Settings{
		Mode:                      c.Mode,
		WebhookURL:                c.WebhookURL,
		AmplitudeAPIKey:           c.AmplitudeAPIKey,
		AmplitudeEndpoint:         c.AmplitudeEndpoint,
		AmplitudeIdentifyEndpoint: c.AmplitudeIdentifyEndpoint,
		Timeout:                   time.Duration(c.TimeoutMs) * time.Millisecond,
	}
}

// Redacted returns a copy with credentials masked, safe to expose over HTTP.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Normalizer.APIKey = mask(c.Normalizer.APIKey)
	c.Dispatch.AmplitudeAPIKey = mask(c.Dispatch.AmplitudeAPIKey)
	return c
}
