// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// Config represents the application configuration. Fields with a `default`
// tag fall back to that value when the variable is unset; fields marked
// `optional` may be empty (broker credentials are only needed when the
// matching provider is active).
type Config struct {
	APIName           string `env:"STOCKRHYTHM_APP_NAME" default:"StockRhythm Gateway API"`
	APIVersion        string `env:"STOCKRHYTHM_APP_VERSION" default:"1.0.0"`
	ServerPort        string `env:"STOCKRHYTHM_SERVER_PORT" default:"8000"`
	ServerLogLevel    string `env:"STOCKRHYTHM_SERVER_LOG_LEVEL" default:"info"`
	ActiveProvider    string `env:"STOCKRHYTHM_PROVIDER" default:"mock"`
	DBDriver          string `env:"STOCKRHYTHM_DB_DRIVER" default:"sqlite"`
	DBDsn             string `env:"STOCKRHYTHM_DB_DSN" default:"gateway.db"`
	RedisAddr         string `env:"STOCKRHYTHM_REDIS_ADDR" optional:"true"`
	RedisPassword     string `env:"STOCKRHYTHM_REDIS_PASSWORD" optional:"true"`
	InstrumentsCSV    string `env:"STOCKRHYTHM_INSTRUMENTS_CSV" default:"data/instruments.csv"`
	PaperCash         string `env:"STOCKRHYTHM_PAPER_CASH" default:"1000000"`
	KotakAccessToken  string `env:"KOTAK_ACCESS_TOKEN" optional:"true"`
	KotakMobile       string `env:"KOTAK_MOBILE" optional:"true"`
	KotakUCC          string `env:"KOTAK_UCC" optional:"true"`
	KotakMPIN         string `env:"KOTAK_MPIN" optional:"true"`
	KotakTotpSecret   string `env:"KOTAK_TOTP_SECRET" optional:"true"`
	UpstoxAPIKey      string `env:"UPSTOX_API_KEY" optional:"true"`
	UpstoxAPISecret   string `env:"UPSTOX_API_SECRET" optional:"true"`
	UpstoxRedirectURI string `env:"UPSTOX_REDIRECT_URI" optional:"true"`
	UpstoxAccessToken string `env:"UPSTOX_ACCESS_TOKEN" optional:"true"`
	UpstoxAuthCode    string `env:"UPSTOX_AUTH_CODE" optional:"true"`
	MockSymbols       string `env:"STOCKRHYTHM_MOCK_SYMBOLS" default:"MOCK"`
	MockBasePrice     string `env:"STOCKRHYTHM_MOCK_BASE_PRICE" default:"100"`
	MockMaxDeviation  string `env:"STOCKRHYTHM_MOCK_MAX_DEVIATION" default:"5"`
	MockVolatility    string `env:"STOCKRHYTHM_MOCK_VOLATILITY" default:"0.5"`
	MockMeanReversion string `env:"STOCKRHYTHM_MOCK_MEAN_REVERSION" default:"0.1"`
	MockIntervalMs    string `env:"STOCKRHYTHM_MOCK_INTERVAL_MS" default:"500"`
	MockVolumeMin     string `env:"STOCKRHYTHM_MOCK_VOLUME_MIN" default:"100"`
	MockVolumeMax     string `env:"STOCKRHYTHM_MOCK_VOLUME_MAX" default:"1000"`
	MockSeed          string `env:"STOCKRHYTHM_MOCK_SEED" optional:"true"`
}

var (
	SingleLine string = "--------------------------------------------------"
)

var (
	instance *Config
	once     sync.Once
	err      error
)

// Get returns the application configuration
func Get() (*Config, error) {
	zaplogger.Info(SingleLine)
	zaplogger.Info("Loading Configuration")

	once.Do(func() {
		instance, err = loadConfig()
	})
	return instance, err
}

// loadConfig loads configuration from environment variables
func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(c).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			return fmt.Errorf("missing env tag for field %s", field.Name)
		}

		value := os.Getenv(envTag)
		if value == "" {
			value = field.Tag.Get("default")
		}
		if value == "" && field.Tag.Get("optional") != "true" {
			return fmt.Errorf("env variable %s is required but not set", envTag)
		}

		v.Field(i).SetString(value)
	}

	return nil
}

// RedisEnabled reports whether a Redis address was configured
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// MockSymbolList returns the configured mock symbols
func (c *Config) MockSymbolList() []string {
	parts := strings.Split(c.MockSymbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Float parses a numeric config field, falling back when unparseable
func Float(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Int parses an integer config field, falling back when unparseable
func Int(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// String returns the configuration as a string
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n--------------------------------------\n")
	sb.WriteString("Configuration:\n")
	sb.WriteString("--------------------------------------\n")

	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(*c)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i).String()

		// Mask sensitive fields
		value = maskSensitiveField(field.Name, value)
		sb.WriteString(fmt.Sprintf("  %s:  %s\n", field.Name, value))
	}

	sb.WriteString("--------------------------------------\n")

	return sb.String()
}

func maskSensitiveField(fieldName, value string) string {
	if value == "" {
		return value
	}

	sensitiveFields := []string{"token", "dsn", "secret", "password", "mpin", "mobile"}

	fieldNameLower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldNameLower, sensitive) {
			return maskValue(value)
		}
	}

	return value
}

func maskValue(value string) string {
	if len(value) <= 3 {
		return strings.Repeat("*", 7)
	}
	return value[:3] + strings.Repeat("*", 7)
}
