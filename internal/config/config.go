package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"termsheet/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Auth     AuthConfig
	S3       S3Config
	Log      LogConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Notify   NotifyConfig
	Metrics  MetricsConfig
}

// ProviderConfig holds settings for a single model provider.
type ProviderConfig struct {
	Provider          string `mapstructure:"provider"`
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	Model             string `mapstructure:"model"`
	MaxRetries        int    `mapstructure:"max_retries"`
	TimeoutSecs       int    `mapstructure:"timeout_secs"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// Timeout returns the per-call timeout, defaulting to 120s.
func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// LLMConfig holds the model gateway settings with fallback slots.
type LLMConfig struct {
	Primary   ProviderConfig `mapstructure:"primary"`
	Secondary ProviderConfig `mapstructure:"secondary"`
	Tertiary  ProviderConfig `mapstructure:"tertiary"`

	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheCapacity uint64        `mapstructure:"cache_capacity"`
}

// Chain returns the configured provider slots in fallback order.
func (l *LLMConfig) Chain() []*ProviderConfig {
	chain := []*ProviderConfig{&l.Primary}
	if l.Secondary.Provider != "" {
		chain = append(chain, &l.Secondary)
	}
	if l.Tertiary.Provider != "" {
		chain = append(chain, &l.Tertiary)
	}
	return chain
}

// PipelineConfig holds chunking, retrieval and batch settings.
type PipelineConfig struct {
	ChunkSize           int     `mapstructure:"chunk_size"`
	Overlap             int     `mapstructure:"overlap"`
	TopK                int     `mapstructure:"top_k"`
	ContextTokenBudget  int     `mapstructure:"context_token_budget"`
	PromptConcurrency   int     `mapstructure:"prompt_concurrency"`
	DocumentConcurrency int     `mapstructure:"document_concurrency"`
	Temperature         float64 `mapstructure:"temperature"`
	PromptsFile         string  `mapstructure:"prompts_file"`
	InputDir            string  `mapstructure:"input_dir"`
	OutputFile          string  `mapstructure:"output_file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DBConfig holds result store connection settings.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the connection string for the configured driver.
func (d *DBConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MigrateURL returns the golang-migrate database URL for the configured driver.
func (d *DBConfig) MigrateURL() string {
	if d.Driver == "sqlite" {
		return "sqlite://" + d.Path
	}
	return d.DSN()
}

// AuthConfig holds API bearer token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	ReportPrefix string `mapstructure:"report_prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotifyConfig holds run-completion notification settings.
type NotifyConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	Recipients  []string `mapstructure:"recipients"`
}

// MetricsConfig holds prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// conventional provider credential variables, used when the slot key is unset.
var providerKeyEnv = map[string]string{
	"groq":      "GROQ_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// default model per provider, applied when a slot names a provider but no model.
var providerDefaultModel = map[string]string{
	"groq":      "llama-3.3-70b-versatile",
	"gemini":    "gemini-2.5-flash",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"ollama":    "llama3.1",
}

// ProviderAPIKey returns the conventional environment credential for a
// provider, or "".
func ProviderAPIKey(provider string) string {
	if env, ok := providerKeyEnv[provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

// DefaultModel returns the default model name for a provider, or "".
func DefaultModel(provider string) string {
	return providerDefaultModel[provider]
}

// Load reads configuration from environment variables with the TERMSHEET_
// prefix and, if configFile is non-empty, from that file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TERMSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.cors_origins", "http://localhost:3000")

	// DB defaults
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "termsheet")
	v.SetDefault("db.password", "termsheet_secret")
	v.SetDefault("db.name", "termsheet_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "termsheet.db")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "termsheet")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.report_prefix", "reports/")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// LLM defaults
	v.SetDefault("llm.primary.provider", "gemini")
	v.SetDefault("llm.primary.max_retries", 3)
	v.SetDefault("llm.primary.timeout_secs", 120)
	v.SetDefault("llm.secondary.provider", "")
	v.SetDefault("llm.secondary.max_retries", 3)
	v.SetDefault("llm.secondary.timeout_secs", 120)
	v.SetDefault("llm.tertiary.provider", "")
	v.SetDefault("llm.tertiary.max_retries", 3)
	v.SetDefault("llm.tertiary.timeout_secs", 120)
	v.SetDefault("llm.cache_ttl", "0s")
	v.SetDefault("llm.cache_capacity", 1024)

	// Pipeline defaults
	v.SetDefault("pipeline.chunk_size", 6000)
	v.SetDefault("pipeline.overlap", 500)
	v.SetDefault("pipeline.top_k", 40)
	v.SetDefault("pipeline.context_token_budget", 0)
	v.SetDefault("pipeline.prompt_concurrency", 1)
	v.SetDefault("pipeline.document_concurrency", 4)
	v.SetDefault("pipeline.temperature", 0.0)
	v.SetDefault("pipeline.prompts_file", "Prompts/prompts_term_sheet.json")
	v.SetDefault("pipeline.input_dir", "Main_term_sheet")
	v.SetDefault("pipeline.output_file", "TermSheet Output.xlsx")

	// Notify defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "us-east-1")
	v.SetDefault("notify.from_address", "noreply@termsheet.local")
	v.SetDefault("notify.recipients", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                   "TERMSHEET_SERVER_PORT",
		"server.read_timeout":           "TERMSHEET_SERVER_READ_TIMEOUT",
		"server.write_timeout":          "TERMSHEET_SERVER_WRITE_TIMEOUT",
		"server.environment":            "TERMSHEET_SERVER_ENVIRONMENT",
		"server.max_upload_mb":          "TERMSHEET_SERVER_MAX_UPLOAD_MB",
		"server.cors_origins":           "TERMSHEET_SERVER_CORS_ORIGINS",
		"db.driver":                     "TERMSHEET_DB_DRIVER",
		"db.host":                       "TERMSHEET_DB_HOST",
		"db.port":                       "TERMSHEET_DB_PORT",
		"db.user":                       "TERMSHEET_DB_USER",
		"db.password":                   "TERMSHEET_DB_PASSWORD",
		"db.name":                       "TERMSHEET_DB_NAME",
		"db.sslmode":                    "TERMSHEET_DB_SSLMODE",
		"db.path":                       "TERMSHEET_DB_PATH",
		"db.max_open":                   "TERMSHEET_DB_MAX_OPEN",
		"db.max_idle":                   "TERMSHEET_DB_MAX_IDLE",
		"auth.jwt_secret":               "TERMSHEET_AUTH_JWT_SECRET",
		"auth.issuer":                   "TERMSHEET_AUTH_ISSUER",
		"s3.region":                     "TERMSHEET_S3_REGION",
		"s3.bucket":                     "TERMSHEET_S3_BUCKET",
		"s3.endpoint":                   "TERMSHEET_S3_ENDPOINT",
		"s3.access_key":                 "TERMSHEET_S3_ACCESS_KEY",
		"s3.secret_key":                 "TERMSHEET_S3_SECRET_KEY",
		"s3.report_prefix":              "TERMSHEET_S3_REPORT_PREFIX",
		"log.level":                     "TERMSHEET_LOG_LEVEL",
		"log.format":                    "TERMSHEET_LOG_FORMAT",
		"llm.cache_ttl":                 "TERMSHEET_LLM_CACHE_TTL",
		"llm.cache_capacity":            "TERMSHEET_LLM_CACHE_CAPACITY",
		"pipeline.chunk_size":           "TERMSHEET_PIPELINE_CHUNK_SIZE",
		"pipeline.overlap":              "TERMSHEET_PIPELINE_OVERLAP",
		"pipeline.top_k":                "TERMSHEET_PIPELINE_TOP_K",
		"pipeline.context_token_budget": "TERMSHEET_PIPELINE_CONTEXT_TOKEN_BUDGET",
		"pipeline.prompt_concurrency":   "TERMSHEET_PIPELINE_PROMPT_CONCURRENCY",
		"pipeline.document_concurrency": "TERMSHEET_PIPELINE_DOCUMENT_CONCURRENCY",
		"pipeline.temperature":          "TERMSHEET_PIPELINE_TEMPERATURE",
		"pipeline.prompts_file":         "TERMSHEET_PIPELINE_PROMPTS_FILE",
		"pipeline.input_dir":            "TERMSHEET_PIPELINE_INPUT_DIR",
		"pipeline.output_file":          "TERMSHEET_PIPELINE_OUTPUT_FILE",
		"notify.provider":               "TERMSHEET_NOTIFY_PROVIDER",
		"notify.region":                 "TERMSHEET_NOTIFY_REGION",
		"notify.from_address":           "TERMSHEET_NOTIFY_FROM_ADDRESS",
		"notify.recipients":             "TERMSHEET_NOTIFY_RECIPIENTS",
		"metrics.enabled":               "TERMSHEET_METRICS_ENABLED",
		"metrics.path":                  "TERMSHEET_METRICS_PATH",
	}
	for _, slot := range []string{"primary", "secondary", "tertiary"} {
		for _, field := range []string{"provider", "api_key", "base_url", "model", "max_retries", "timeout_secs", "requests_per_minute"} {
			key := "llm." + slot + "." + field
			envBindings[key] = "TERMSHEET_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, domain.NewConfigurationError("config_file", fmt.Errorf("reading %s: %w", configFile, err))
		}
	}

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Port:         v.GetString("server.port"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
		CORSOrigins:  splitList(v.GetString("server.cors_origins")),
	}
	cfg.DB = DBConfig{
		Driver:   v.GetString("db.driver"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		Path:     v.GetString("db.path"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("auth.jwt_secret"),
		Issuer:    v.GetString("auth.issuer"),
	}
	cfg.S3 = S3Config{
		Region:       v.GetString("s3.region"),
		Bucket:       v.GetString("s3.bucket"),
		Endpoint:     v.GetString("s3.endpoint"),
		AccessKey:    v.GetString("s3.access_key"),
		SecretKey:    v.GetString("s3.secret_key"),
		ReportPrefix: v.GetString("s3.report_prefix"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.LLM = LLMConfig{
		Primary:       providerFrom(v, "primary"),
		Secondary:     providerFrom(v, "secondary"),
		Tertiary:      providerFrom(v, "tertiary"),
		CacheTTL:      v.GetDuration("llm.cache_ttl"),
		CacheCapacity: v.GetUint64("llm.cache_capacity"),
	}
	cfg.Pipeline = PipelineConfig{
		ChunkSize:           v.GetInt("pipeline.chunk_size"),
		Overlap:             v.GetInt("pipeline.overlap"),
		TopK:                v.GetInt("pipeline.top_k"),
		ContextTokenBudget:  v.GetInt("pipeline.context_token_budget"),
		PromptConcurrency:   v.GetInt("pipeline.prompt_concurrency"),
		DocumentConcurrency: v.GetInt("pipeline.document_concurrency"),
		Temperature:         v.GetFloat64("pipeline.temperature"),
		PromptsFile:         v.GetString("pipeline.prompts_file"),
		InputDir:            v.GetString("pipeline.input_dir"),
		OutputFile:          v.GetString("pipeline.output_file"),
	}
	cfg.Notify = NotifyConfig{
		Provider:    v.GetString("notify.provider"),
		Region:      v.GetString("notify.region"),
		FromAddress: v.GetString("notify.from_address"),
		Recipients:  splitList(v.GetString("notify.recipients")),
	}
	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("metrics.enabled"),
		Path:    v.GetString("metrics.path"),
	}

	// Railway/Heroku/Render set a PORT env var. Use it if TERMSHEET_SERVER_PORT is not explicitly set.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("TERMSHEET_SERVER_PORT") == "" {
		cfg.Server.Port = ":" + port
	}

	return cfg, nil
}

func providerFrom(v *viper.Viper, slot string) ProviderConfig {
	prefix := "llm." + slot + "."
	p := ProviderConfig{
		Provider:          strings.ToLower(v.GetString(prefix + "provider")),
		APIKey:            v.GetString(prefix + "api_key"),
		BaseURL:           v.GetString(prefix + "base_url"),
		Model:             v.GetString(prefix + "model"),
		MaxRetries:        v.GetInt(prefix + "max_retries"),
		TimeoutSecs:       v.GetInt(prefix + "timeout_secs"),
		RequestsPerMinute: v.GetInt(prefix + "requests_per_minute"),
	}
	if p.APIKey == "" {
		p.APIKey = ProviderAPIKey(p.Provider)
	}
	if p.Model == "" {
		p.Model = DefaultModel(p.Provider)
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.ChunkSize <= 0 || p.Overlap < 0 || p.Overlap >= p.ChunkSize {
		return domain.NewConfigurationError("pipeline.chunk_size",
			fmt.Errorf("%w (size=%d, overlap=%d)", domain.ErrInvalidChunkParams, p.ChunkSize, p.Overlap))
	}
	if p.TopK <= 0 {
		return domain.NewConfigurationError("pipeline.top_k", errors.New("top_k must be positive"))
	}
	if p.ContextTokenBudget < 0 {
		return domain.NewConfigurationError("pipeline.context_token_budget", errors.New("budget must not be negative"))
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return domain.NewConfigurationError("db.driver", fmt.Errorf("unsupported driver %q", c.DB.Driver))
	}
	if c.LLM.Primary.Provider == "" {
		return domain.NewConfigurationError("llm.primary.provider", domain.ErrUnknownProvider)
	}
	return nil
}
