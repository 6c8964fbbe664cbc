// Package config holds the process configuration, parsed from environment
// variables. A .env file is loaded by the entry point before parsing.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration.
type Config struct {
	// Dashboard / API server
	Addr   string `env:"WABOT_ADDR" envDefault:":3000"`
	APIKey string `env:"WABOT_API_KEY"`

	LogLevel string `env:"WABOT_LOG_LEVEL" envDefault:"info"`

	// Admin store
	DBPath string `env:"WABOT_DB" envDefault:"wabot.db"`

	// Destination number normalization
	CountryCode    string `env:"WABOT_COUNTRY_CODE" envDefault:"91"`
	DomesticDigits int    `env:"WABOT_DOMESTIC_DIGITS" envDefault:"10"`

	// Conversational pacing. ReadDelay simulates reading the inbound message,
	// TypingPerChar scales the fake typing time with reply length, clamped to
	// [TypingMin, TypingMax].
	ReadDelayMin  time.Duration `env:"WABOT_READ_DELAY_MIN" envDefault:"1s"`
	ReadDelayMax  time.Duration `env:"WABOT_READ_DELAY_MAX" envDefault:"2s"`
	TypingPerChar time.Duration `env:"WABOT_TYPING_PER_CHAR" envDefault:"50ms"`
	TypingMin     time.Duration `env:"WABOT_TYPING_MIN" envDefault:"2s"`
	TypingMax     time.Duration `env:"WABOT_TYPING_MAX" envDefault:"7s"`

	// Campaign pacing. TypingDwell is how long the typing indicator is shown
	// before each bulk send; SendDelay bounds the randomized inter-send gap.
	// These are operational policy, not invariants — tune per deployment.
	TypingDwell  time.Duration `env:"WABOT_TYPING_DWELL" envDefault:"5s"`
	SendDelayMin time.Duration `env:"WABOT_SEND_DELAY_MIN" envDefault:"4s"`
	SendDelayMax time.Duration `env:"WABOT_SEND_DELAY_MAX" envDefault:"8s"`

	// Reply generation
	AIProvider   string `env:"WABOT_AI_PROVIDER" envDefault:"openai"`
	AIKey        string `env:"WABOT_AI_KEY"`
	AIBaseURL    string `env:"WABOT_AI_BASE" envDefault:"https://integrate.api.nvidia.com/v1"`
	AIModel      string `env:"WABOT_AI_MODEL" envDefault:"nvidia/nemotron-3-nano-30b-a3b"`
	BusinessName string `env:"WABOT_BUSINESS_NAME" envDefault:"Autommensor"`

	// Optional campaign event publishing
	AMQPURL      string `env:"WABOT_AMQP_URL"`
	AMQPExchange string `env:"WABOT_AMQP_EXCHANGE" envDefault:"wabot.events"`
}

// Load parses the configuration from the environment and validates the
// delay ranges.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ReadDelayMax < cfg.ReadDelayMin {
		return nil, fmt.Errorf("read delay range inverted: %s > %s", cfg.ReadDelayMin, cfg.ReadDelayMax)
	}
	if cfg.TypingMax < cfg.TypingMin {
		return nil, fmt.Errorf("typing clamp range inverted: %s > %s", cfg.TypingMin, cfg.TypingMax)
	}
	if cfg.SendDelayMax < cfg.SendDelayMin {
		return nil, fmt.Errorf("send delay range inverted: %s > %s", cfg.SendDelayMin, cfg.SendDelayMax)
	}
	if cfg.DomesticDigits <= 0 {
		return nil, fmt.Errorf("domestic digit count must be positive, got %d", cfg.DomesticDigits)
	}
	return cfg, nil
}
