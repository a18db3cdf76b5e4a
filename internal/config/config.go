// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development)
// or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// MinAgentVersion gates automated shopper clients; empty disables the gate.
	MinAgentVersion string

	// Offer endpoint rate limiting (token bucket per caller).
	OfferRatePerSecond float64
	OfferRateBurst     int

	// Ivy payment-provider settings (loaded from secrets in production).
	Ivy IvyConfig
}

// IvyConfig contains the payment-provider credentials.
// In production this is loaded from Secret Manager as JSON; in
// development from individual env vars.
type IvyConfig struct {
	APIURL        string `json:"api_url"`
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:               envOrDefault("PORT", "8080"),
		Environment:        envOrDefault("ENVIRONMENT", "development"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		GCPProject:         os.Getenv("GCP_PROJECT"),
		SecretID:           envOrDefault("SECRET_ID", "haggle-api"),
		MinAgentVersion:    os.Getenv("MIN_AGENT_VERSION"),
		OfferRatePerSecond: envFloatOrDefault("OFFER_RATE_PER_SECOND", 5),
		OfferRateBurst:     envIntOrDefault("OFFER_RATE_BURST", 10),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading provider config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port               string    `json:"port"`
		Environment        string    `json:"environment"`
		LogLevel           string    `json:"log_level"`
		MinAgentVersion    string    `json:"min_agent_version"`
		OfferRatePerSecond float64   `json:"offer_rate_per_second"`
		OfferRateBurst     int       `json:"offer_rate_burst"`
		Ivy                IvyConfig `json:"ivy"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:               withDefault(fileConfig.Port, "8080"),
		Environment:        withDefault(fileConfig.Environment, "development"),
		LogLevel:           withDefault(fileConfig.LogLevel, "info"),
		MinAgentVersion:    fileConfig.MinAgentVersion,
		OfferRatePerSecond: fileConfig.OfferRatePerSecond,
		OfferRateBurst:     fileConfig.OfferRateBurst,
		Ivy:                fileConfig.Ivy,
	}
	if cfg.OfferRatePerSecond <= 0 {
		cfg.OfferRatePerSecond = 5
	}
	if cfg.OfferRateBurst <= 0 {
		cfg.OfferRateBurst = 10
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the provider credentials from GCP Secret
// Manager. Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Ivy); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads provider config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Ivy = IvyConfig{
		APIURL:        os.Getenv("IVY_API_URL"),
		APIKey:        os.Getenv("IVY_API_KEY"),
		WebhookSecret: os.Getenv("IVY_WEBHOOK_SECRET"),
	}
	return nil
}

// validate checks that all required configuration fields are present.
// The webhook signing secret is required in production: booting a
// deployment that silently skips signature checks is the one
// misconfiguration this service must not tolerate.
func (c *Config) validate() error {
	if c.Ivy.APIURL == "" {
		return fmt.Errorf("ivy api_url is required")
	}
	if _, err := url.Parse(c.Ivy.APIURL); err != nil {
		return fmt.Errorf("invalid ivy api_url: %w", err)
	}
	if c.Ivy.APIKey == "" {
		return fmt.Errorf("ivy api_key is required")
	}
	if c.Environment == "production" && c.Ivy.WebhookSecret == "" {
		return fmt.Errorf("ivy webhook_secret is required in production")
	}
	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}
