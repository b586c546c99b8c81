// Package config loads and validates quiz service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper. It is
// built once at startup and shared read-only afterwards.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig holds the shared secret callers must present.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// WorkflowConfig bounds a single quiz chain.
type WorkflowConfig struct {
	TimeBudgetSeconds      int `mapstructure:"time_budget_seconds"`
	MaxSteps               int `mapstructure:"max_steps"`
	MaxPayloadBytes        int `mapstructure:"max_payload_bytes"`
	SubmitTimeoutSeconds   int `mapstructure:"submit_timeout_seconds"`
	DownloadTimeoutSeconds int `mapstructure:"download_timeout_seconds"`
	ResponseExcerptBytes   int `mapstructure:"response_excerpt_bytes"`
	// HardTimeoutSeconds caps a request end to end; zero derives it from the
	// budget plus one step of slack.
	HardTimeoutSeconds int `mapstructure:"hard_timeout_seconds"`
}

// HeadlessConfig configures the headless renderer.
type HeadlessConfig struct {
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs     int     `mapstructure:"settle_delay_ms"`
	UserAgent         string  `mapstructure:"user_agent"`
	NoSandbox         bool    `mapstructure:"no_sandbox"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
}

// ParserConfig selects what gets summed out of attachments.
type ParserConfig struct {
	ColumnName       string `mapstructure:"column_name"`
	PDFPage          int    `mapstructure:"pdf_page"`
	MaxDownloadBytes int    `mapstructure:"max_download_bytes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	ServiceName    string `mapstructure:"service_name"`
}

// Option adjusts the Viper instance before unmarshalling, for values that
// come from flags.
type Option func(v *viper.Viper)

// WithSecret overrides auth.secret when s is non-empty.
func WithSecret(s string) Option {
	return func(v *viper.Viper) {
		if s != "" {
			v.Set("auth.secret", s)
		}
	}
}

// Load builds a Config from disk/environment.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for _, opt := range opts {
		opt(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindLegacyEnv keeps PORT and QUIZ_SECRET working alongside the prefixed
// names.
func bindLegacyEnv(v *viper.Viper) error {
	if err := v.BindEnv("server.port", "QUIZ_SERVER_PORT", "PORT"); err != nil {
		return fmt.Errorf("bind server.port: %w", err)
	}
	if err := v.BindEnv("auth.secret", "QUIZ_AUTH_SECRET", "QUIZ_SECRET"); err != nil {
		return fmt.Errorf("bind auth.secret: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("workflow.time_budget_seconds", 180)
	v.SetDefault("workflow.max_steps", 6)
	v.SetDefault("workflow.max_payload_bytes", 1_000_000)
	v.SetDefault("workflow.submit_timeout_seconds", 30)
	v.SetDefault("workflow.download_timeout_seconds", 30)
	v.SetDefault("workflow.response_excerpt_bytes", 2000)
	v.SetDefault("workflow.hard_timeout_seconds", 0)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.settle_delay_ms", 1000)
	v.SetDefault("headless.user_agent", "")
	v.SetDefault("headless.no_sandbox", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.domain_qps", 0)
	v.SetDefault("parser.column_name", "value")
	v.SetDefault("parser.pdf_page", 2)
	v.SetDefault("parser.max_download_bytes", 50<<20)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "quizchain")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required (QUIZ_SECRET)"))
	}
	if c.Workflow.TimeBudgetSeconds <= 0 {
		errs = append(errs, errors.New("workflow.time_budget_seconds must be > 0"))
	}
	if c.Workflow.MaxSteps <= 0 {
		errs = append(errs, errors.New("workflow.max_steps must be > 0"))
	}
	if c.Workflow.MaxPayloadBytes <= 0 {
		errs = append(errs, errors.New("workflow.max_payload_bytes must be > 0"))
	}
	if c.Workflow.SubmitTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("workflow.submit_timeout_seconds must be > 0"))
	}
	if c.Workflow.DownloadTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("workflow.download_timeout_seconds must be > 0"))
	}
	if c.Workflow.ResponseExcerptBytes <= 0 {
		errs = append(errs, errors.New("workflow.response_excerpt_bytes must be > 0"))
	}
	if c.Workflow.HardTimeoutSeconds < 0 {
		errs = append(errs, errors.New("workflow.hard_timeout_seconds must be >= 0"))
	}
	if c.Headless.NavTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("headless.nav_timeout_seconds must be > 0"))
	}
	if c.Headless.SettleDelayMs < 0 {
		errs = append(errs, errors.New("headless.settle_delay_ms must be >= 0"))
	}
	if c.Headless.MaxParallel <= 0 {
		errs = append(errs, errors.New("headless.max_parallel must be > 0"))
	}
	if c.Headless.DomainQPS < 0 {
		errs = append(errs, errors.New("headless.domain_qps must be >= 0"))
	}
	if strings.TrimSpace(c.Parser.ColumnName) == "" {
		errs = append(errs, errors.New("parser.column_name must be set"))
	}
	if c.Parser.PDFPage <= 0 {
		errs = append(errs, errors.New("parser.pdf_page must be > 0"))
	}
	if c.Parser.MaxDownloadBytes <= 0 {
		errs = append(errs, errors.New("parser.max_download_bytes must be > 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TimeBudget is the wall-clock budget checked before each step.
func (c Config) TimeBudget() time.Duration {
	return time.Duration(c.Workflow.TimeBudgetSeconds) * time.Second
}

// SubmitTimeout bounds one submission POST.
func (c Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Workflow.SubmitTimeoutSeconds) * time.Second
}

// DownloadTimeout bounds one attachment download.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Workflow.DownloadTimeoutSeconds) * time.Second
}

// NavTimeout bounds one page render.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

// SettleDelay is the pause after network idle before capturing a page.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Headless.SettleDelayMs) * time.Millisecond
}

// StepSlack is the longest a single step can take once started.
func (c Config) StepSlack() time.Duration {
	return c.NavTimeout() + c.SettleDelay() + c.DownloadTimeout() + c.SubmitTimeout()
}

// HardTimeout caps a whole request. A step begun just under the budget may
// run its full course, so the derived value adds one step of slack.
func (c Config) HardTimeout() time.Duration {
	if c.Workflow.HardTimeoutSeconds > 0 {
		return time.Duration(c.Workflow.HardTimeoutSeconds) * time.Second
	}
	return c.TimeBudget() + c.StepSlack()
}
