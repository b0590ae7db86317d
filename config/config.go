package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/byte4ever/bobber/stamper"
)

const (
	configName = "bobber"
	configType = "yaml"
	envPrefix  = "BOBBER"
)

// Hosting providers.
const (
	ProviderGitHub    = "github"
	ProviderGitLab    = "gitlab"
	ProviderBitbucket = "bitbucket"
)

// StatusConfig holds the commit status templates.
type StatusConfig struct {
	TargetURL   string `mapstructure:"target_url"`
	Description string `mapstructure:"description"`
	Context     string `mapstructure:"context"`
}

// Config is the complete bobber configuration.
type Config struct {
	// Provider selects the hosting API: github,
	// gitlab or bitbucket.
	Provider string `mapstructure:"provider"`
	// APIURL overrides the hosting API base URL.
	APIURL string `mapstructure:"api_url"`
	// Token authenticates API requests. Optional.
	Token string `mapstructure:"token"`
	// User and Password authenticate Bitbucket
	// requests with basic auth.
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// UserAgent is sent with every API request.
	UserAgent string `mapstructure:"user_agent"`
	// Mock accepts every repository URL without
	// probing it.
	Mock bool `mapstructure:"mock"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// Status holds the commit status templates.
	Status StatusConfig `mapstructure:"status"`
	// MergeMessage is the merge commit template.
	MergeMessage string `mapstructure:"merge_message"`
	// VarsFiles are "KEY VALUE" files whose
	// variables are available to every template.
	VarsFiles []string `mapstructure:"vars_files"`
}

// Default returns the built-in configuration.
func Default() Config {
	tpl := stamper.DefaultTemplates()

	return Config{
		Provider:  ProviderGitHub,
		UserAgent: "bobber",
		LogLevel:  "info",
		Status: StatusConfig{
			TargetURL:   tpl.TargetURL,
			Description: tpl.Description,
			Context:     tpl.Context,
		},
		MergeMessage: tpl.MergeMessage,
	}
}

func defaults(cfg Config) map[string]any {
	return map[string]any{
		"provider":           cfg.Provider,
		"api_url":            cfg.APIURL,
		"token":              cfg.Token,
		"user":               cfg.User,
		"password":           cfg.Password,
		"user_agent":         cfg.UserAgent,
		"mock":               cfg.Mock,
		"log_level":          cfg.LogLevel,
		"status.target_url":  cfg.Status.TargetURL,
		"status.description": cfg.Status.Description,
		"status.context":     cfg.Status.Context,
		"merge_message":      cfg.MergeMessage,
		"vars_files":         cfg.VarsFiles,
	}
}

// Load reads the configuration. An explicit path must
// exist; without one, bobber.yaml in the working
// directory is used when present. Environment variables
// named BOBBER_<KEY> override both, with "." in nested
// keys replaced by "_" (e.g. BOBBER_STATUS_CONTEXT).
// The returned string is the file used, if any.
func Load(path string) (Config, string, error) {
	const errCtx = "loading configuration"

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults(Default()) {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf(
			"%s: decoding: %w", errCtx, err,
		)
	}

	return cfg, v.ConfigFileUsed(), nil
}

// Validate checks the provider and log level.
func (c Config) Validate() error {
	const errCtx = "invalid configuration"

	switch c.Provider {
	case ProviderGitHub, ProviderGitLab, ProviderBitbucket:
	default:
		return fmt.Errorf(
			"%s: unknown provider %q", errCtx, c.Provider,
		)
	}

	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if c.Provider == ProviderBitbucket && c.APIURL == "" {
		return fmt.Errorf(
			"%s: bitbucket requires api_url", errCtx,
		)
	}

	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level

	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf(
			"log level %q: %w", c.LogLevel, err,
		)
	}

	return lvl, nil
}

// Templates returns the stamper templates.
func (c Config) Templates() stamper.Templates {
	return stamper.Templates{
		TargetURL:    c.Status.TargetURL,
		Description:  c.Status.Description,
		Context:      c.Status.Context,
		MergeMessage: c.MergeMessage,
	}
}
