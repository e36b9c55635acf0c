package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envKeyReplacer maps nested config keys onto env var segments, so
// imap.password becomes HELPDESK_IMAP_PASSWORD.
var envKeyReplacer = strings.NewReplacer(".", "_")

// IMAPConfig holds the inbound mailbox settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// From is the address replies are sent from. Defaults to Username.
	From string `mapstructure:"from" yaml:"from"`
}

// LLMConfig holds settings for the extraction backend.
type LLMConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Model      string `mapstructure:"model" yaml:"model"`
	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// IngestConfig controls the ingestion batch cadence and cursor location.
type IngestConfig struct {
	// IntervalSec is how often the poller runs a batch. Zero disables
	// background polling; batches can still be triggered via the API.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// CursorPath is the file holding the last processed mailbox UID.
	CursorPath string `mapstructure:"cursor_path" yaml:"cursor_path"`
}

// HTTPConfig holds the web server settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Config is the top-level application configuration.
type Config struct {
	IMAP   IMAPConfig   `mapstructure:"imap" yaml:"imap"`
	SMTP   SMTPConfig   `mapstructure:"smtp" yaml:"smtp"`
	LLM    LLMConfig    `mapstructure:"llm" yaml:"llm"`
	Ingest IngestConfig `mapstructure:"ingest" yaml:"ingest"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`
	DBPath string       `mapstructure:"db_path" yaml:"db_path"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/helpdesk/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "helpdesk", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", "993")
	// Credentials default to empty so env overrides resolve during
	// Unmarshal (viper only consults the env for known keys).
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.tls", false)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.timeout_sec", 30)
	v.SetDefault("ingest.interval_sec", 120)
	v.SetDefault("ingest.cursor_path", "last_uid.txt")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db_path", "helpdesk.db")
}

// Load reads configuration from the given YAML file path using Viper,
// with HELPDESK_* environment variables overriding file values
// (e.g. HELPDESK_IMAP_PASSWORD). A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("HELPDESK")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.SMTP.Username == "" {
		cfg.SMTP.Username = cfg.IMAP.Username
	}
	if cfg.SMTP.Password == "" {
		cfg.SMTP.Password = cfg.IMAP.Password
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	return cfg, nil
}
