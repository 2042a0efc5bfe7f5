package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:"glossian.db"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"4"`

	TranslationEngine string `envconfig:"TRANSLATION_ENGINE" default:"google"`
	SourceLang        string `envconfig:"SOURCE_LANG" default:"ja"`
	TargetLang        string `envconfig:"TARGET_LANG" default:"en"`

	// TranslateAlreadyTranslated drops the engine id from cache lookups so that a
	// translation produced by any engine counts as a hit.
	TranslateAlreadyTranslated bool `envconfig:"TRANSLATE_ALREADY_TRANSLATED" default:"false"`
	SkipTargetLanguageText     bool `envconfig:"SKIP_TARGET_LANGUAGE_TEXT" default:"true"`
	CopyToClipboard            bool `envconfig:"COPY_TO_CLIPBOARD" default:"false"`

	TranslationTimeout       time.Duration `envconfig:"TRANSLATION_TIMEOUT" default:"20s"`
	TranslationRatePerSecond float64       `envconfig:"TRANSLATION_RATE_PER_SECOND" default:"5"`
	TranslationBurst         int           `envconfig:"TRANSLATION_BURST" default:"5"`

	DeepLAPIKey   string `envconfig:"DEEPL_API_KEY" default:""`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	DispatchMaxInFlight int           `envconfig:"DISPATCH_MAX_IN_FLIGHT" default:"4"`
	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" default:"100ms"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.TranslationEngine) == "" {
		return fmt.Errorf("TRANSLATION_ENGINE is required")
	}
	if strings.TrimSpace(c.TargetLang) == "" {
		return fmt.Errorf("TARGET_LANG is required")
	}
	if c.TranslationTimeout <= 0 {
		return fmt.Errorf("TRANSLATION_TIMEOUT must be > 0")
	}
	if c.TranslationRatePerSecond <= 0 {
		return fmt.Errorf("TRANSLATION_RATE_PER_SECOND must be > 0")
	}
	if c.TranslationBurst < 1 {
		return fmt.Errorf("TRANSLATION_BURST must be >= 1")
	}
	if c.DispatchMaxInFlight < 1 {
		return fmt.Errorf("DISPATCH_MAX_IN_FLIGHT must be >= 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	return nil
}

// MatchEngine reports whether cache lookups must require the engine id to match.
func (c *Config) MatchEngine() bool {
	if c == nil {
		return true
	}
	return !c.TranslateAlreadyTranslated
}
