package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultTimeout bounds a single Fetch when a config leaves Timeout unset.
const DefaultTimeout = 30 * time.Second

// HTTPConfig contains common fields for the providers that talk plain HTTP.
type HTTPConfig struct {
	BaseURL string        `json:"baseUrl" jsonschema:"title=Base URL,description=Scheme and host of the provider API,required" validate:"required,url"`
	Timeout time.Duration `json:"timeout" jsonschema:"title=Timeout,description=Timeout of one request in nanoseconds" validate:"gte=0"`
}

// StooqConfig contains configuration for the stooq CSV endpoint.
type StooqConfig struct {
	HTTPConfig
}

// YahooConfig contains configuration for the Yahoo Finance chart endpoint.
type YahooConfig struct {
	HTTPConfig

	UserAgent string `json:"userAgent" jsonschema:"title=User Agent,description=User-Agent header sent with each request"`
}

// PolygonConfig contains configuration for Polygon.io daily aggregates.
type PolygonConfig struct {
	ApiKey  string        `json:"apiKey" jsonschema:"title=API Key,description=Polygon.io API key for authentication,required" keychain:"true" validate:"required"`
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	// Since is the first date requested.
	Since time.Time `json:"since" jsonschema:"title=Since,description=First date of the requested history"`
}

// BinanceConfig contains configuration for Binance daily klines.
type BinanceConfig struct {
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	// Since is the first date requested.
	Since time.Time `json:"since" jsonschema:"title=Since,description=First date of the requested history"`
}

func validate(config any) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Validate validates the StooqConfig.
func (c *StooqConfig) Validate() error {
	return validate(c)
}

// Validate validates the YahooConfig.
func (c *YahooConfig) Validate() error {
	return validate(c)
}

// Validate validates the PolygonConfig.
func (c *PolygonConfig) Validate() error {
	return validate(c)
}

// Validate validates the BinanceConfig.
func (c *BinanceConfig) Validate() error {
	return validate(c)
}

// ParsePolygonConfig parses JSON into a PolygonConfig.
func ParsePolygonConfig(jsonConfig string) (*PolygonConfig, error) {
	var config PolygonConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func timeoutOrDefault(t time.Duration) time.Duration {
	if t <= 0 {
		return DefaultTimeout
	}

	return t
}
