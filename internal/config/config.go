package config

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	SerpAPI    SerpAPIConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0"`
}

// SearchConfig selects and tunes the web search provider.
type SearchConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider" validate:"oneof=serpapi jina"`
	NumResults  int    `yaml:"num_results" mapstructure:"num_results" validate:"gte=1,lte=100"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
}

// SerpAPIConfig holds SerpAPI credentials.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// LLMConfig selects the generative provider and its sampling settings.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider" validate:"oneof=anthropic gemini openai"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=1"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds settings for an OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FetchConfig configures homepage retrieval.
type FetchConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	MaxChars     int    `yaml:"max_chars" mapstructure:"max_chars" validate:"gte=1"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=1024"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
}

// RetryConfig configures transient-failure retries for search and fetch.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int     `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies" validate:"gte=1"`
	RatePerSec             float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gte=0"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures extraction-quality checks run by the server.
type MonitoringConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours" validate:"gte=0"`
	UnknownRateThreshold    float64 `yaml:"unknown_rate_threshold" mapstructure:"unknown_rate_threshold" validate:"gte=0,lte=1"`
	NoLinkedInRateThreshold float64 `yaml:"no_linkedin_rate_threshold" mapstructure:"no_linkedin_rate_threshold" validate:"gte=0,lte=1"`
	MinRecords              int     `yaml:"min_records" mapstructure:"min_records" validate:"gte=0"`
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// DefaultUserAgent is a desktop browser user agent; many sites reject bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// legacyEnv maps config keys to unprefixed environment variable names that
// are also honored.
var legacyEnv = map[string]string{
	"serpapi.key":   "SERP_API_KEY",
	"jina.key":      "JINA_API_KEY",
	"anthropic.key": "ANTHROPIC_API_KEY",
	"gemini.key":    "GEMINI_API_KEY",
	"openai.key":    "OPENAI_API_KEY",
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envName := "EXTRACTOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "companies.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.num_results", 10)
	v.SetDefault("search.timeout_secs", 20)
	v.SetDefault("serpapi.key", "")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_chars", 6000)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("batch.max_concurrent_companies", 4)
	v.SetDefault("batch.rate_per_sec", 2.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.unknown_rate_threshold", 0.5)
	v.SetDefault("monitoring.no_linkedin_rate_threshold", 0.8)
	v.SetDefault("monitoring.min_records", 5)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

var validate = newValidator()

// newValidator reports fields by their config key rather than Go name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks value ranges and enumerations. It does not require
// provider secrets; see ValidateProviders.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return eris.Errorf("config: invalid settings: %s", strings.Join(fieldErrors(err), ", "))
	}
	return nil
}

// providerKeys gathers the secrets of the selected providers.
type providerKeys struct {
	SearchProvider string
	LLMProvider    string
	SerpAPIKey     string `validate:"required_if=SearchProvider serpapi"`
	JinaKey        string `validate:"required_if=SearchProvider jina"`
	AnthropicKey   string `validate:"required_if=LLMProvider anthropic"`
	GeminiKey      string `validate:"required_if=LLMProvider gemini"`
	OpenAIKey      string `validate:"required_if=LLMProvider openai"`
}

var providerKeyNames = map[string]string{
	"SerpAPIKey":   "serpapi.key",
	"JinaKey":      "jina.key",
	"AnthropicKey": "anthropic.key",
	"GeminiKey":    "gemini.key",
	"OpenAIKey":    "openai.key",
}

// ValidateProviders fails when the API key of the selected search or LLM
// provider is missing. The error lists every missing setting.
func (c *Config) ValidateProviders() error {
	keys := providerKeys{
		SearchProvider: c.Search.Provider,
		LLMProvider:    c.LLM.Provider,
		SerpAPIKey:     c.SerpAPI.Key,
		JinaKey:        c.Jina.Key,
		AnthropicKey:   c.Anthropic.Key,
		GeminiKey:      c.Gemini.Key,
		OpenAIKey:      c.OpenAI.Key,
	}
	err := validate.Struct(keys)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "config: validate providers")
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, providerKeyNames[fe.StructField()])
	}
	sort.Strings(missing)
	return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, strings.TrimPrefix(fe.Namespace(), "Config.")+" ("+fe.Tag()+")")
	}
	return out
}

// InitLogger initializes the global zap logger.
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
