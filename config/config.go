package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/sickpay-engine/timeline"
)

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Rules  RulesConfig  `yaml:"rules" mapstructure:"rules"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RateLimit caps evaluations per second across all clients. Zero disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// StoreConfig configures the SQLite database. An empty path disables
// persistence.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RulesConfig holds engine inputs that change without a release.
type RulesConfig struct {
	// BaseAmountsFile is a YAML base amount table. Empty uses the built-in one.
	BaseAmountsFile string `yaml:"base_amounts_file" mapstructure:"base_amounts_file"`
	// DefaultTieBreak applies to relationships without their own tie-break.
	DefaultTieBreak string `yaml:"default_tie_break" mapstructure:"default_tie_break"`
	// MirrorAuditToLog also writes every audit record to the zap logger.
	MirrorAuditToLog bool `yaml:"mirror_audit_to_log" mapstructure:"mirror_audit_to_log"`
}

// Load reads config.yaml from the working directory (optional), then
// SICKPAY_* environment variables, over the defaults below.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SICKPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("store.path", "sickpay.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("rules.base_amounts_file", "")
	v.SetDefault("rules.default_tie_break", "continuous_sickness_priority")
	v.SetDefault("rules.mirror_audit_to_log", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "serve" or
// "evaluate".
func (c *Config) Validate(mode string) error {
	var missing []string

	if _, err := timeline.TieBreakByName(c.Rules.DefaultTieBreak); err != nil {
		missing = append(missing, "rules.default_tie_break: "+err.Error())
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit < 0 {
			missing = append(missing, "server.rate_limit must not be negative")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			missing = append(missing, "server.rate_burst must be at least 1 when rate_limit is set")
		}
	case "evaluate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger replaces the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
