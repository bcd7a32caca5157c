package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var defaults = map[string]any{
	KeySessionPath:            DefaultSessionPath,
	KeyConnectTimeoutMs:       DefaultConnectTimeout.Milliseconds(),
	KeyHTTPHost:               DefaultHTTPHost,
	KeyHTTPPort:               DefaultHTTPPort,
	KeyHealthTTLMs:            DefaultHealthTTL.Milliseconds(),
	KeyHealthTimeoutMs:        DefaultHealthTimeout.Milliseconds(),
	KeySendRateLimitPerMinute: 0,
	KeySendRateLimitBurst:     0,
	KeyMetricsEnabled:         true,
	KeyTracingOTLPEndpoint:    DefaultOTLPEndpoint,
	KeyTracingZipkinEndpoint:  DefaultZipkinEndpoint,
	KeyTracingSampleRate:      1.0,
	KeyLogLevel:               DefaultLogLevel,
	KeyGinMode:                DefaultGinMode,
}

// Load resolves the configuration. Precedence, lowest first: defaults, config
// file, environment, overrides. Invalid values yield a *ConfigError.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{envLookup: os.LookupEnv}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.envLookup == nil {
		options.envLookup = func(string) (string, bool) { return "", false }
	}

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(viperKey(key), value)
	}

	if path := strings.TrimSpace(options.configPath); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, Metadata{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		meta.configFile = v.ConfigFileUsed()
		for _, key := range Keys {
			if v.InConfig(viperKey(key)) {
				meta.sources[key] = SourceFile
			}
		}
	}

	for _, key := range Keys {
		if value, ok := options.envLookup(key); ok && strings.TrimSpace(value) != "" {
			v.Set(viperKey(key), value)
			meta.sources[key] = SourceEnv
		}
	}

	applyOverrides(v, &meta, options.overrides)

	cfg, err := resolve(v)
	if err != nil {
		return Config{}, Metadata{}, err
	}
	return cfg, meta, nil
}

func applyOverrides(v *viper.Viper, meta *Metadata, overrides Overrides) {
	set := func(key string, value any) {
		v.Set(viperKey(key), value)
		meta.sources[key] = SourceOverride
	}
	if overrides.HTTPHost != nil && strings.TrimSpace(*overrides.HTTPHost) != "" {
		set(KeyHTTPHost, *overrides.HTTPHost)
	}
	if overrides.HTTPPort != nil && *overrides.HTTPPort != 0 {
		set(KeyHTTPPort, *overrides.HTTPPort)
	}
	if overrides.SessionPath != nil && strings.TrimSpace(*overrides.SessionPath) != "" {
		set(KeySessionPath, *overrides.SessionPath)
	}
	if overrides.LogLevel != nil && strings.TrimSpace(*overrides.LogLevel) != "" {
		set(KeyLogLevel, *overrides.LogLevel)
	}
}

func resolve(v *viper.Viper) (Config, error) {
	get := func(key string) string {
		return strings.TrimSpace(v.GetString(viperKey(key)))
	}

	cfg := Config{
		APIHash:     get(KeyAPIHash),
		SessionPath: get(KeySessionPath),
		HTTPHost:    get(KeyHTTPHost),
		HTTPToken:   get(KeyHTTPToken),
		LogFile:     get(KeyLogFile),
		Tracing: TracingConfig{
			OTLPEndpoint:   get(KeyTracingOTLPEndpoint),
			ZipkinEndpoint: get(KeyTracingZipkinEndpoint),
			ServiceName:    DefaultServiceName,
		},
	}

	apiIDRaw := get(KeyAPIID)
	if apiIDRaw == "" || cfg.APIHash == "" {
		field := KeyAPIID
		if apiIDRaw != "" {
			field = KeyAPIHash
		}
		return Config{}, &ConfigError{Field: field, Message: "TG_API_ID and TG_API_HASH are required."}
	}
	apiID, err := strconv.Atoi(apiIDRaw)
	if err != nil {
		return Config{}, &ConfigError{Field: KeyAPIID, Message: "TG_API_ID must be an integer."}
	}
	cfg.APIID = apiID

	if cfg.SessionPath == "" {
		cfg.SessionPath = DefaultSessionPath
	}
	if cfg.HTTPHost == "" {
		cfg.HTTPHost = DefaultHTTPHost
	}

	port, err := strconv.Atoi(get(KeyHTTPPort))
	if err != nil || port <= 0 || port > math.MaxUint16 {
		return Config{}, &ConfigError{Field: KeyHTTPPort, Message: "HTTP_PORT must be a positive integer."}
	}
	cfg.HTTPPort = port

	cfg.HealthTTL = parsePositiveMillis(get(KeyHealthTTLMs), DefaultHealthTTL)
	cfg.HealthTimeout = parsePositiveMillis(get(KeyHealthTimeoutMs), DefaultHealthTimeout)
	cfg.ConnectTimeout = parsePositiveMillis(get(KeyConnectTimeoutMs), DefaultConnectTimeout)

	if cfg.SendRateLimitPerMinute, err = parseNonNegativeInt(KeySendRateLimitPerMinute, get(KeySendRateLimitPerMinute)); err != nil {
		return Config{}, err
	}
	if cfg.SendRateLimitBurst, err = parseNonNegativeInt(KeySendRateLimitBurst, get(KeySendRateLimitBurst)); err != nil {
		return Config{}, err
	}

	cfg.CORSAllowedOrigins = parseList(v.Get(viperKey(KeyCORSAllowedOrigins)))

	metrics, err := strconv.ParseBool(get(KeyMetricsEnabled))
	if err != nil {
		return Config{}, &ConfigError{Field: KeyMetricsEnabled, Message: "METRICS_ENABLED must be a boolean."}
	}
	cfg.MetricsEnabled = metrics

	switch exporter := strings.ToLower(get(KeyTracingExporter)); exporter {
	case ExporterNone, ExporterOTLP, ExporterZipkin:
		cfg.Tracing.Exporter = exporter
	default:
		return Config{}, &ConfigError{Field: KeyTracingExporter, Message: "TRACING_EXPORTER must be otlp or zipkin."}
	}
	rate, err := strconv.ParseFloat(get(KeyTracingSampleRate), 64)
	if err != nil || rate < 0 || rate > 1 {
		return Config{}, &ConfigError{Field: KeyTracingSampleRate, Message: "TRACING_SAMPLE_RATE must be between 0 and 1."}
	}
	cfg.Tracing.SampleRate = rate

	switch level := strings.ToLower(get(KeyLogLevel)); level {
	case "debug", "info", "warn", "warning", "error":
		cfg.LogLevel = level
	default:
		return Config{}, &ConfigError{Field: KeyLogLevel, Message: "LOG_LEVEL must be one of debug, info, warn, error."}
	}

	switch mode := strings.ToLower(get(KeyGinMode)); mode {
	case "debug", "release", "test":
		cfg.GinMode = mode
	default:
		return Config{}, &ConfigError{Field: KeyGinMode, Message: "GIN_MODE must be debug, release or test."}
	}

	return cfg, nil
}

// parsePositiveMillis accepts any positive number of milliseconds, truncating
// fractions. Missing, non-numeric or non-positive input yields fallback.
func parsePositiveMillis(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed <= 0 {
		return fallback
	}
	ms := math.Floor(parsed)
	if ms < 1 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func parseNonNegativeInt(key, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, &ConfigError{Field: key, Message: key + " must be a non-negative integer."}
	}
	return value, nil
}

func parseList(raw any) []string {
	var parts []string
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(value, ",")
	case []string:
		parts = value
	case []any:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = strings.Split(fmt.Sprint(value), ",")
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func viperKey(key string) string {
	return strings.ToLower(key)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
