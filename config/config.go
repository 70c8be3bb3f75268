package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/llm"
	"github.com/chris/tally/internal/logger"
)

// LedgerOff disables the spend ledger when used as ledger_path.
const LedgerOff = "off"

type Config struct {
	Model          string        `mapstructure:"model" yaml:"model"`
	SystemPrompt   string        `mapstructure:"system_prompt" yaml:"system_prompt"`
	MaxTokens      int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	LedgerPath     string        `mapstructure:"ledger_path" yaml:"ledger_path"`
	HistoryFile    string        `mapstructure:"history_file" yaml:"history_file"`
	Markdown       bool          `mapstructure:"markdown" yaml:"markdown"`

	// Secrets come from the environment (or .env) and are never written out.
	OpenAIKey      string `mapstructure:"openai_api_key" yaml:"-"`
	OpenAIBaseURL  string `mapstructure:"openai_base_url" yaml:"-"`
	AnthropicKey   string `mapstructure:"anthropic_api_key" yaml:"-"`
	AnthropicToken string `mapstructure:"anthropic_auth_token" yaml:"-"`
	OllamaBaseURL  string `mapstructure:"ollama_base_url" yaml:"-"`

	Log logger.LogConfig `mapstructure:"log" yaml:"log"`

	// ModelSet reports whether model came from a file or the environment
	// rather than the default.
	ModelSet bool `mapstructure:"-" yaml:"-"`
}

// envBindings maps config keys to the conventional variable names.
var envBindings = map[string]string{
	"openai_api_key":       "OPENAI_API_KEY",
	"openai_base_url":      "OPENAI_BASE_URL",
	"anthropic_api_key":    "ANTHROPIC_API_KEY",
	"anthropic_auth_token": "ANTHROPIC_AUTH_TOKEN",
	"ollama_base_url":      "OLLAMA_BASE_URL",
}

// Dir is ~/.tally.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".tally"), nil
}

func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", catalog.DefaultModel)
	v.SetDefault("system_prompt", llm.SystemPrompt)
	v.SetDefault("max_tokens", 0)
	v.SetDefault("request_timeout", "60s")
	v.SetDefault("markdown", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	if dir, err := Dir(); err == nil {
		v.SetDefault("ledger_path", filepath.Join(dir, "ledger.db"))
		v.SetDefault("history_file", filepath.Join(dir, "history"))
	} else {
		v.SetDefault("ledger_path", LedgerOff)
		v.SetDefault("history_file", "")
	}
}

// Load reads .env (if present), the config file at path (if present) and
// TALLY_* environment variables, in increasing order of precedence. A
// missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // ignore error if no .env

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "TALLY_"+env, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ModelSet = v.InConfig("model") || os.Getenv("TALLY_MODEL") != ""
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be >= 0, got %d", c.MaxTokens)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return errors.New("system_prompt must not be empty")
	}
	return nil
}

// LedgerEnabled reports whether turns should be recorded.
func (c *Config) LedgerEnabled() bool {
	return c.LedgerPath != "" && c.LedgerPath != LedgerOff
}

// Credentials returns the key, OAuth token and base URL for a provider.
func (c *Config) Credentials(provider string) (apiKey, authToken, baseURL string) {
	switch provider {
	case catalog.ProviderOpenAI:
		return c.OpenAIKey, "", c.OpenAIBaseURL
	case catalog.ProviderAnthropic:
		return c.AnthropicKey, c.AnthropicToken, ""
	case catalog.ProviderOllama:
		return "", "", c.OllamaBaseURL
	}
	return "", "", ""
}

// WriteDefault writes a config file holding the defaults. Existing files are
// kept unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
