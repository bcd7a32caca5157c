package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const redactedValue = "********"

type displayConfig struct {
	APIID                  int      `yaml:"tg_api_id"`
	APIHash                string   `yaml:"tg_api_hash"`
	SessionPath            string   `yaml:"tg_session_path"`
	ConnectTimeoutMs       int64    `yaml:"tg_connect_timeout_ms"`
	HTTPHost               string   `yaml:"http_host"`
	HTTPPort               int      `yaml:"http_port"`
	HTTPToken              string   `yaml:"http_token"`
	HealthTTLMs            int64    `yaml:"health_telegram_ttl_ms"`
	HealthTimeoutMs        int64    `yaml:"health_telegram_timeout_ms"`
	SendRateLimitPerMinute int      `yaml:"send_rate_limit_per_minute"`
	SendRateLimitBurst     int      `yaml:"send_rate_limit_burst"`
	CORSAllowedOrigins     []string `yaml:"cors_allowed_origins,flow"`
	MetricsEnabled         bool     `yaml:"metrics_enabled"`
	TracingExporter        string   `yaml:"tracing_exporter"`
	TracingOTLPEndpoint    string   `yaml:"tracing_otlp_endpoint"`
	TracingZipkinEndpoint  string   `yaml:"tracing_zipkin_endpoint"`
	TracingSampleRate      float64  `yaml:"tracing_sample_rate"`
	LogLevel               string   `yaml:"log_level"`
	LogFile                string   `yaml:"log_file"`
	GinMode                string   `yaml:"gin_mode"`
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redactedValue
}

func (c Config) display() displayConfig {
	return displayConfig{
		APIID:                  c.APIID,
		APIHash:                redact(c.APIHash),
		SessionPath:            c.SessionPath,
		ConnectTimeoutMs:       c.ConnectTimeout.Milliseconds(),
		HTTPHost:               c.HTTPHost,
		HTTPPort:               c.HTTPPort,
		HTTPToken:              redact(c.HTTPToken),
		HealthTTLMs:            c.HealthTTL.Milliseconds(),
		HealthTimeoutMs:        c.HealthTimeout.Milliseconds(),
		SendRateLimitPerMinute: c.SendRateLimitPerMinute,
		SendRateLimitBurst:     c.SendRateLimitBurst,
		CORSAllowedOrigins:     c.CORSAllowedOrigins,
		MetricsEnabled:         c.MetricsEnabled,
		TracingExporter:        c.Tracing.Exporter,
		TracingOTLPEndpoint:    c.Tracing.OTLPEndpoint,
		TracingZipkinEndpoint:  c.Tracing.ZipkinEndpoint,
		TracingSampleRate:      c.Tracing.SampleRate,
		LogLevel:               c.LogLevel,
		LogFile:                c.LogFile,
		GinMode:                c.GinMode,
	}
}

// RedactedYAML renders the configuration with secrets masked.
func (c Config) RedactedYAML() ([]byte, error) {
	return yaml.Marshal(c.display())
}

// Summary is a single log line describing the effective configuration,
// secrets masked, with each value's source when it is not a default.
func (c Config) Summary(meta Metadata) string {
	d := c.display()
	fields := []struct {
		key   string
		value any
	}{
		{KeyAPIID, d.APIID},
		{KeyAPIHash, d.APIHash},
		{KeySessionPath, d.SessionPath},
		{KeyHTTPHost, d.HTTPHost},
		{KeyHTTPPort, d.HTTPPort},
		{KeyHTTPToken, d.HTTPToken},
		{KeyHealthTTLMs, d.HealthTTLMs},
		{KeyHealthTimeoutMs, d.HealthTimeoutMs},
		{KeyConnectTimeoutMs, d.ConnectTimeoutMs},
		{KeySendRateLimitPerMinute, d.SendRateLimitPerMinute},
		{KeyMetricsEnabled, d.MetricsEnabled},
		{KeyTracingExporter, d.TracingExporter},
		{KeyLogLevel, d.LogLevel},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		part := fmt.Sprintf("%s=%v", f.key, f.value)
		if src := meta.Source(f.key); src != SourceDefault {
			part += "(" + string(src) + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
