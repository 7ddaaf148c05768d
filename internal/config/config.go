package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"go.opentelemetry.io/otel/attribute"
)

const upsSandboxURL = "https://wwwcie.ups.com"

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port            int    `envconfig:"PORT" default:"80"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	DefaultCurrency string `envconfig:"DEFAULT_CURRENCY" default:"USD"`

	// UPS
	UPSEnabled            bool          `envconfig:"UPS_ENABLED" default:"true"`
	UPSUseMock            bool          `envconfig:"UPS_USE_MOCK" default:"false"`
	UPSClientID           string        `envconfig:"UPS_CLIENT_ID"`
	UPSClientSecret       string        `envconfig:"UPS_CLIENT_SECRET"`
	UPSAccountNumber      string        `envconfig:"UPS_ACCOUNT_NUMBER"`
	UPSBaseURL            string        `envconfig:"UPS_BASE_URL" default:"https://onlinetools.ups.com"`
	UPSSandbox            bool          `envconfig:"UPS_SANDBOX" default:"false"`
	UPSAPIVersion         string        `envconfig:"UPS_API_VERSION" default:"v2403"`
	UPSUseNegotiatedRates bool          `envconfig:"UPS_USE_NEGOTIATED_RATES" default:"false"`
	UPSTokenRefreshBuffer time.Duration `envconfig:"UPS_TOKEN_REFRESH_BUFFER" default:"5m"`
	UPSRequestTimeout     time.Duration `envconfig:"UPS_REQUEST_TIMEOUT" default:"30s"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"ratebridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if _, err := shipper.ParseCurrency(c.DefaultCurrency); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_CURRENCY: %w", err))
	}
	if c.UPSEnabled && !c.UPSUseMock {
		if c.UPSClientID == "" || c.UPSClientSecret == "" {
			errs = append(errs, errors.New("UPS_CLIENT_ID and UPS_CLIENT_SECRET are required when UPS is enabled"))
		}
	}
	if c.UPSTokenRefreshBuffer <= 0 {
		errs = append(errs, errors.New("UPS_TOKEN_REFRESH_BUFFER must be positive"))
	}
	if c.UPSRequestTimeout <= 0 {
		errs = append(errs, errors.New("UPS_REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Currency returns the parsed default currency, USD if unset or invalid.
func (c *Config) Currency() shipper.Currency {
	cur, err := shipper.ParseCurrency(c.DefaultCurrency)
	if err != nil {
		return shipper.CurrencyUSD
	}
	return cur
}

// UPSEndpoint returns the UPS base URL, honouring UPS_SANDBOX.
func (c *Config) UPSEndpoint() string {
	if c.UPSSandbox {
		return upsSandboxURL
	}
	return c.UPSBaseURL
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("ups.enabled", c.UPSEnabled),
		attribute.Bool("ups.sandbox", c.UPSSandbox),
		attribute.Bool("ups.negotiated_rates", c.UPSUseNegotiatedRates),
		attribute.String("default_currency", string(c.Currency())),
	}
}
