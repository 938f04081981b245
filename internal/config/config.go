package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "TDNET_CONFIG"
	baseURLEnv        = "TDNET_BASE_URL"
	outputDirEnv      = "TDNET_OUTPUT_DIR"
	logLevelEnv       = "TDNET_LOG_LEVEL"
	ledgerDriverEnv   = "TDNET_LEDGER_DRIVER"
	ledgerDSNEnv      = "TDNET_LEDGER_DSN"
	metricsFileEnv    = "TDNET_METRICS_FILE"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"

	defaultBaseURL   = "https://www.release.tdnet.info"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Source        SourceConfig       `yaml:"source"`
	Output        OutputConfig       `yaml:"output"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// LoggingConfig sets the slog level (debug, info, warn, error).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig describes how the disclosure listing is reached.
type SourceConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	UserAgent string        `yaml:"userAgent"`
	Referer   string        `yaml:"referer"`
	Timeout   time.Duration `yaml:"timeout"`
	PageDelay time.Duration `yaml:"pageDelay"`
	// Encoding of listing pages: "shift_jis" (or ms932) forces Japanese
	// decoding, "auto" sniffs a BOM or meta charset and otherwise assumes
	// Shift_JIS, "utf-8" passes bytes through.
	Encoding string `yaml:"encoding"`
}

// OutputConfig controls where documents land and how file names are bounded.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	NameMaxRunes  int    `yaml:"nameMaxRunes"`
	TitleMaxRunes int    `yaml:"titleMaxRunes"`
	MaxNameBytes  int    `yaml:"maxNameBytes"`
	Extension     string `yaml:"extension"`
}

// LedgerConfig enables the optional SQL audit trail of download outcomes.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MetricsConfig points at a node_exporter textfile; empty disables export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	APIBase  string `yaml:"apiBase"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines how often serve mode runs the pipeline.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RefererURL returns the configured referer or the service landing page.
func (s SourceConfig) RefererURL() string {
	if s.Referer != "" {
		return s.Referer
	}
	return strings.TrimSuffix(s.BaseURL, "/") + "/inbs/I_main_00.html"
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path wins over TDNET_CONFIG.
func Load(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if fileCfg, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

// Parse decodes YAML and merges it over the defaults.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(baseURLEnv); v != "" {
		c.Source.BaseURL = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Output.Dir = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(ledgerDriverEnv); v != "" {
		c.Ledger.Driver = v
	}

	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(metricsFileEnv); v != "" {
		c.Metrics.Textfile = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) normalize() {
	def := Default()

	c.Source.BaseURL = strings.TrimSuffix(c.Source.BaseURL, "/")
	if c.Source.Timeout <= 0 {
		log.Printf("config: invalid source timeout %s, reverting to %s", c.Source.Timeout, def.Source.Timeout)
		c.Source.Timeout = def.Source.Timeout
	}
	if c.Source.PageDelay < 0 {
		c.Source.PageDelay = def.Source.PageDelay
	}
	if c.Output.Extension != "" && !strings.HasPrefix(c.Output.Extension, ".") {
		c.Output.Extension = "." + c.Output.Extension
	}
	if c.Output.MaxNameBytes <= 0 {
		c.Output.MaxNameBytes = def.Output.MaxNameBytes
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = def.Ledger.Driver
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = def.Scheduler.Interval
	}
}

// Default returns the settings used when no file or environment overrides exist.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Source: SourceConfig{
			BaseURL:   defaultBaseURL,
			UserAgent: defaultUserAgent,
			Timeout:   30 * time.Second,
			PageDelay: 500 * time.Millisecond,
			Encoding:  "shift_jis",
		},
		Output: OutputConfig{
			Dir:           ".",
			NameMaxRunes:  40,
			TitleMaxRunes: 100,
			MaxNameBytes:  255,
			Extension:     ".pdf",
		},
		Ledger:    LedgerConfig{Driver: "sqlite"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
	}
}
