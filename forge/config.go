package forge

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. The YAML file is the base
// layer, FORGE_* environment variables override it, and defaults fill
// whatever remains zero.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Browser    BrowserConfig    `yaml:"browser"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Store      StoreConfig      `yaml:"store"`
	Blueprints BlueprintsConfig `yaml:"blueprints"`
	Serve      ServeConfig      `yaml:"serve"`
}

type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LOG_LEVEL"`
	File       string `yaml:"file" envconfig:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"LOG_MAX_SIZE_MB"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"LOG_MAX_AGE_DAYS"`
}

type BrowserConfig struct {
	Headless          *bool  `yaml:"headless" envconfig:"BROWSER_HEADLESS"`
	TimeoutMS         int    `yaml:"timeout_ms" envconfig:"BROWSER_TIMEOUT_MS"`
	Width             int    `yaml:"width" envconfig:"BROWSER_WIDTH"`
	Height            int    `yaml:"height" envconfig:"BROWSER_HEIGHT"`
	ChromePath        string `yaml:"chrome_path" envconfig:"BROWSER_CHROME_PATH"`
	RemoteURL         string `yaml:"remote_url" envconfig:"BROWSER_REMOTE_URL"`
	UserAgent         string `yaml:"user_agent" envconfig:"BROWSER_USER_AGENT"`
	AllowPrivateHosts bool   `yaml:"allow_private_hosts" envconfig:"BROWSER_ALLOW_PRIVATE_HOSTS"`
}

type ExtractorConfig struct {
	MaxDepth      int `yaml:"max_depth" envconfig:"EXTRACTOR_MAX_DEPTH"`
	MaxCategories int `yaml:"max_categories" envconfig:"EXTRACTOR_MAX_CATEGORIES"`
	MinResults    int `yaml:"min_results" envconfig:"EXTRACTOR_MIN_RESULTS"`
	SettleMS      int `yaml:"settle_ms" envconfig:"EXTRACTOR_SETTLE_MS"`
	MaxNavBlocks  int `yaml:"max_nav_blocks" envconfig:"EXTRACTOR_MAX_NAV_BLOCKS"`
}

type AnalyzerConfig struct {
	Provider     string  `yaml:"provider" envconfig:"ANALYZER_PROVIDER"`
	Model        string  `yaml:"model" envconfig:"ANALYZER_MODEL"`
	BaseURL      string  `yaml:"base_url" envconfig:"ANALYZER_BASE_URL"`
	APIKey       string  `yaml:"api_key" envconfig:"ANALYZER_API_KEY"`
	Temperature  float64 `yaml:"temperature" envconfig:"ANALYZER_TEMPERATURE"`
	MaxTokens    int     `yaml:"max_tokens" envconfig:"ANALYZER_MAX_TOKENS"`
	MaxHTMLChars int     `yaml:"max_html_chars" envconfig:"ANALYZER_MAX_HTML_CHARS"`
	MaxRetries   int     `yaml:"max_retries" envconfig:"ANALYZER_MAX_RETRIES"`
	RetryDelayMS int     `yaml:"retry_delay_ms" envconfig:"ANALYZER_RETRY_DELAY_MS"`
	TimeoutMS    int     `yaml:"timeout_ms" envconfig:"ANALYZER_TIMEOUT_MS"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_DRIVER"` // sqlite | postgres
	Path   string `yaml:"path" envconfig:"STORE_PATH"`     // sqlite file
	DSN    string `yaml:"dsn" envconfig:"STORE_DSN"`       // postgres pool DSN
}

type BlueprintsConfig struct {
	Dir string `yaml:"dir" envconfig:"BLUEPRINTS_DIR"`
}

type ServeConfig struct {
	HTTPAddr string `yaml:"http_addr" envconfig:"SERVE_HTTP_ADDR"`
}

func (c *Config) defaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
	if c.Browser.Headless == nil {
		t := true
		c.Browser.Headless = &t
	}
	if c.Browser.TimeoutMS <= 0 {
		c.Browser.TimeoutMS = 60000
	}
	if c.Browser.Width <= 0 {
		c.Browser.Width = 1920
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 1080
	}
	if c.Extractor.MaxDepth <= 0 {
		c.Extractor.MaxDepth = 5
	}
	if c.Extractor.MaxCategories <= 0 {
		c.Extractor.MaxCategories = 10000
	}
	if c.Extractor.MinResults <= 0 {
		c.Extractor.MinResults = 5
	}
	if c.Extractor.SettleMS <= 0 {
		c.Extractor.SettleMS = 500
	}
	if c.Extractor.MaxNavBlocks <= 0 {
		c.Extractor.MaxNavBlocks = 5
	}
	if c.Analyzer.Provider == "" {
		c.Analyzer.Provider = "openai"
	}
	if c.Analyzer.MaxTokens <= 0 {
		c.Analyzer.MaxTokens = 4096
	}
	if c.Analyzer.MaxHTMLChars <= 0 {
		c.Analyzer.MaxHTMLChars = 60000
	}
	if c.Analyzer.MaxRetries <= 0 {
		c.Analyzer.MaxRetries = 3
	}
	if c.Analyzer.RetryDelayMS <= 0 {
		c.Analyzer.RetryDelayMS = 2000
	}
	if c.Analyzer.TimeoutMS <= 0 {
		c.Analyzer.TimeoutMS = 120000
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "forgeai.db"
	}
	if c.Blueprints.Dir == "" {
		c.Blueprints.Dir = "blueprints"
	}
	if c.Serve.HTTPAddr == "" {
		c.Serve.HTTPAddr = ":8080"
	}
}

// Validate rejects contradictory settings. Missing analyzer
// credentials are not checked here; replay and serve work without
// them.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("forge: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("forge: postgres store requires store.dsn")
	}
	switch c.Analyzer.Provider {
	case "openai", "openrouter", "ollama", "anthropic":
	default:
		return fmt.Errorf("forge: unknown analyzer provider %q", c.Analyzer.Provider)
	}
	return nil
}

// Load reads the optional YAML file, applies FORGE_* environment
// overrides, fills defaults and validates. An empty path skips the
// file layer.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("forge: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("forge: parse config: %w", err)
		}
	}
	if err := envconfig.Process("forge", cfg); err != nil {
		return nil, fmt.Errorf("forge: env overrides: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger builds the process logger: JSON to stderr, tee'd into a
// rotating file when log.file is set.
func (c *Config) Logger() *slog.Logger {
	level := parseLevel(c.Log.Level)

	var w io.Writer = os.Stderr
	if c.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Log.File), 0o750); err != nil {
			slog.New(slog.NewJSONHandler(os.Stderr, nil)).
				Error("forge: log directory", "path", c.Log.File, "error", err)
		} else {
			w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
				Filename:   c.Log.File,
				MaxSize:    c.Log.MaxSizeMB,
				MaxAge:     c.Log.MaxAgeDays,
				MaxBackups: 3,
				Compress:   true,
			})
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Summary reports the effective configuration with secrets masked,
// for a startup log line.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"log.level":        c.Log.Level,
		"browser.headless": *c.Browser.Headless,
		"browser.timeout":  c.Browser.TimeoutMS,
		"analyzer":         c.Analyzer.Provider + "/" + c.Analyzer.Model,
		"analyzer.api_key": maskSecret(c.Analyzer.APIKey),
		"store.driver":     c.Store.Driver,
		"store.dsn":        maskSecret(c.Store.DSN),
		"blueprints.dir":   c.Blueprints.Dir,
	}
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
