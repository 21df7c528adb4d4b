package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Log       LogConfig       `mapstructure:"log"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
	Debug       bool   `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

const (
	SecondaryMemory   = "memory"
	SecondaryPostgres = "postgres"
)

// StorageConfig describes the two-tier store. The primary tier is a bounded
// snapshot file; the secondary tier takes records that do not fit.
type StorageConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
	QuotaBytes   int    `mapstructure:"quota_bytes"`
	Secondary    string `mapstructure:"secondary"`
	ReadThrough  bool   `mapstructure:"read_through"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

type AssistantConfig struct {
	Provider     string `mapstructure:"provider"`
	Language     string `mapstructure:"language"`
	Creator      string `mapstructure:"creator"`
	XPPerMessage int    `mapstructure:"xp_per_message"`
	Retry        bool   `mapstructure:"retry"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	FastModel   string  `mapstructure:"fast_model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the YAML file at path, if any, over the defaults and then
// applies environment overrides. Nested keys map to upper-case variables
// with underscores, e.g. STORAGE_SECONDARY.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "vaaniii")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("storage.snapshot_path", "data/vaaniii.json")
	v.SetDefault("storage.quota_bytes", 5<<20)
	v.SetDefault("storage.secondary", SecondaryMemory)
	v.SetDefault("storage.read_through", true)
	v.SetDefault("storage.history_limit", 50)
	v.SetDefault("assistant.provider", ProviderGemini)
	v.SetDefault("assistant.language", "English")
	v.SetDefault("assistant.creator", "Commander")
	v.SetDefault("assistant.xp_per_message", 10)
	v.SetDefault("assistant.retry", true)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.fast_model", "gemini-flash-lite-latest")
	v.SetDefault("gemini.max_tokens", 2048)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("log.level", "info")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	switch c.Storage.Secondary {
	case SecondaryMemory, SecondaryPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.secondary: unknown tier %q", c.Storage.Secondary))
	}
	switch c.Assistant.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOffline:
	default:
		errs = append(errs, fmt.Errorf("assistant.provider: unknown provider %q", c.Assistant.Provider))
	}
	if c.Storage.HistoryLimit <= 0 {
		errs = append(errs, errors.New("storage.history_limit must be positive"))
	}
	return errors.Join(errs...)
}
