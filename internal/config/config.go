package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"twinvoice/internal/logger"
	"twinvoice/internal/mof"
)

// Config carries all environment-driven settings. The enrichment,
// classification, and Sheets integrations are optional; their settings are
// validated lazily by the commands that need them.
type Config struct {
	// MOF e-invoice platform (optional; used by --enrich)
	MOFEndpoint       string
	MOFAppID          string
	MOFAPIKey         string
	MOFVersion        string
	MOFAction         string
	MOFTimeoutSeconds int

	// OpenAI (optional; used by --categorize)
	OpenAIAPIKey string
	OpenAIModel  string

	// Google Sheets ledger (optional; used by --sheet)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	timeoutSecs, err := getEnvInt("MOF_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config := &Config{
		MOFEndpoint:          getEnv("MOF_ENDPOINT", ""),
		MOFAppID:             getEnv("MOF_APP_ID", ""),
		MOFAPIKey:            getEnv("MOF_API_KEY", ""),
		MOFVersion:           getEnv("MOF_VERSION", mof.DefaultVersion),
		MOFAction:            getEnv("MOF_ACTION", mof.DefaultAction),
		MOFTimeoutSeconds:    timeoutSecs,
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Invoices"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// MOFConfig returns the MOF client configuration. It does not validate; the
// client constructor rejects an empty endpoint.
func (c *Config) MOFConfig() mof.Config {
	return mof.Config{
		Endpoint: c.MOFEndpoint,
		AppID:    c.MOFAppID,
		APIKey:   c.MOFAPIKey,
		Version:  c.MOFVersion,
		Action:   c.MOFAction,
		Timeout:  time.Duration(c.MOFTimeoutSeconds) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}
