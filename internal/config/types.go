// Package config loads the bridge configuration from defaults, an optional
// config file, the environment, and command-line overrides, in that order.
package config

import "time"

// Environment variable names. The same names (lowercased) are accepted as keys
// in a config file.
const (
	KeyAPIID                  = "TG_API_ID"
	KeyAPIHash                = "TG_API_HASH"
	KeySessionPath            = "TG_SESSION_PATH"
	KeyConnectTimeoutMs       = "TG_CONNECT_TIMEOUT_MS"
	KeyHTTPHost               = "HTTP_HOST"
	KeyHTTPPort               = "HTTP_PORT"
	KeyHTTPToken              = "HTTP_TOKEN"
	KeyHealthTTLMs            = "HEALTH_TELEGRAM_TTL_MS"
	KeyHealthTimeoutMs        = "HEALTH_TELEGRAM_TIMEOUT_MS"
	KeySendRateLimitPerMinute = "SEND_RATE_LIMIT_PER_MINUTE"
	KeySendRateLimitBurst     = "SEND_RATE_LIMIT_BURST"
	KeyCORSAllowedOrigins     = "CORS_ALLOWED_ORIGINS"
	KeyMetricsEnabled         = "METRICS_ENABLED"
	KeyTracingExporter        = "TRACING_EXPORTER"
	KeyTracingOTLPEndpoint    = "TRACING_OTLP_ENDPOINT"
	KeyTracingZipkinEndpoint  = "TRACING_ZIPKIN_ENDPOINT"
	KeyTracingSampleRate      = "TRACING_SAMPLE_RATE"
	KeyLogLevel               = "LOG_LEVEL"
	KeyLogFile                = "LOG_FILE"
	KeyGinMode                = "GIN_MODE"
)

// Keys lists every recognised key in display order.
var Keys = []string{
	KeyAPIID, KeyAPIHash, KeySessionPath, KeyConnectTimeoutMs,
	KeyHTTPHost, KeyHTTPPort, KeyHTTPToken,
	KeyHealthTTLMs, KeyHealthTimeoutMs,
	KeySendRateLimitPerMinute, KeySendRateLimitBurst, KeyCORSAllowedOrigins,
	KeyMetricsEnabled,
	KeyTracingExporter, KeyTracingOTLPEndpoint, KeyTracingZipkinEndpoint, KeyTracingSampleRate,
	KeyLogLevel, KeyLogFile, KeyGinMode,
}

const (
	DefaultSessionPath    = "/data/tg_user.session"
	DefaultHTTPHost       = "0.0.0.0"
	DefaultHTTPPort       = 3000
	DefaultHealthTTL      = 15 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultOTLPEndpoint   = "localhost:4318"
	DefaultZipkinEndpoint = "http://localhost:9411/api/v2/spans"
	DefaultLogLevel       = "info"
	DefaultGinMode        = "release"
	DefaultServiceName    = "tgbridge"
)

// Tracing exporters.
const (
	ExporterNone   = ""
	ExporterOTLP   = "otlp"
	ExporterZipkin = "zipkin"
)

// Config is the resolved bridge configuration.
type Config struct {
	APIID       int
	APIHash     string
	SessionPath string

	HTTPHost  string
	HTTPPort  int
	HTTPToken string

	HealthTTL      time.Duration
	HealthTimeout  time.Duration
	ConnectTimeout time.Duration

	// Per-client-IP limiter on /send. Zero disables it.
	SendRateLimitPerMinute int
	SendRateLimitBurst     int

	CORSAllowedOrigins []string
	MetricsEnabled     bool
	Tracing            TracingConfig

	LogLevel string
	LogFile  string
	GinMode  string
}

// TracingConfig selects and configures the span exporter.
type TracingConfig struct {
	Exporter       string
	OTLPEndpoint   string
	ZipkinEndpoint string
	SampleRate     float64
	ServiceName    string
}

// Enabled reports whether a span exporter is configured.
func (t TracingConfig) Enabled() bool {
	return t.Exporter != ExporterNone
}

// ListenAddr is the host:port the gateway binds.
func (c Config) ListenAddr() string {
	return joinHostPort(c.HTTPHost, c.HTTPPort)
}

// ValueSource records where a key's effective value came from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

// Metadata describes how a Config was assembled.
type Metadata struct {
	sources    map[string]ValueSource
	configFile string
	loadedAt   time.Time
}

// Source returns the origin of key's value.
func (m Metadata) Source(key string) ValueSource {
	if m.sources == nil {
		return SourceDefault
	}
	if src, ok := m.sources[key]; ok {
		return src
	}
	return SourceDefault
}

// ConfigFile is the file that was read, if any.
func (m Metadata) ConfigFile() string {
	return m.configFile
}

func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Overrides carries command-line values that beat every other source.
type Overrides struct {
	HTTPHost    *string
	HTTPPort    *int
	SessionPath *string
	LogLevel    *string
}

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	configPath string
	overrides  Overrides
}

// WithEnv replaces the process environment.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithConfigPath reads a YAML/JSON/TOML config file before the environment.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithOverrides applies command-line values last.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}
