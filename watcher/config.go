package watcher

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mainefish/fishwatch/report"
	"github.com/mainefish/fishwatch/urlcheck"
)

// DefaultSourceURL is the Maine IFW stocking report watched when no source
// is configured.
const DefaultSourceURL = "https://www.maine.gov/ifw/docs/current_stocking_report.pdf"

// DefaultKey identifies the watched document in the state store.
const DefaultKey = "current_stocking_report"

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
// or "6h". yaml.v3 has no native duration support; plain integers are
// accepted as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("watcher: duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("watcher: invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level fishwatch configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Extract  ExtractConfig  `yaml:"extract"`
	Store    StoreConfig    `yaml:"store"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Notify   NotifyConfig   `yaml:"notify"`
	Admin    AdminConfig    `yaml:"admin"`
}

// SourceConfig identifies the watched document.
type SourceConfig struct {
	URL       string `yaml:"url"`
	UserAgent string `yaml:"user_agent"`
}

// FetchConfig controls proxy rotation.
type FetchConfig struct {
	Proxies          []string `yaml:"proxies"`
	AttemptsPerProxy int      `yaml:"attempts_per_proxy"`
	RetryDelay       Duration `yaml:"retry_delay"`
	Timeout          Duration `yaml:"timeout"`
	MaxBytes         int64    `yaml:"max_bytes"`
}

// ExtractConfig selects the record extraction strategy.
type ExtractConfig struct {
	Strategy string `yaml:"strategy"` // lines | tables
}

// StoreConfig names the state-store key for the watched document.
type StoreConfig struct {
	Key string `yaml:"key"`
}

// ScheduleConfig controls the watch interval.
type ScheduleConfig struct {
	Interval Duration `yaml:"interval"`
}

// NotifyConfig configures message rendering and delivery destinations.
// A destination is active when its required fields are set.
type NotifyConfig struct {
	Template string            `yaml:"template"` // empty means notify.DefaultTemplate
	SMS      SMSNotifyConfig   `yaml:"sms"`
	Webhooks []WebhookEndpoint `yaml:"webhooks"`
}

// SMSNotifyConfig holds Twilio credentials and recipients.
type SMSNotifyConfig struct {
	AccountSID string   `yaml:"account_sid"`
	AuthToken  string   `yaml:"auth_token"` // TWILIO_AUTH_TOKEN overrides
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
}

// WebhookEndpoint is one webhook destination.
type WebhookEndpoint struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// AdminConfig guards the admin API's mutating endpoints.
type AdminConfig struct {
	PasswordHash string `yaml:"password_hash"` // bcrypt; FISHWATCH_ADMIN_HASH overrides
}

// DefaultConfig returns a Config with every default applied and no proxies
// or notification destinations.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfigFile reads a YAML configuration file, applies defaults and
// environment overrides, and validates the result.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("watcher: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("watcher: parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.URL == "" {
		c.Source.URL = DefaultSourceURL
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = "fishwatch/1.0"
	}
	if c.Fetch.AttemptsPerProxy <= 0 {
		c.Fetch.AttemptsPerProxy = 5
	}
	if c.Fetch.RetryDelay <= 0 {
		c.Fetch.RetryDelay = Duration(5 * time.Second)
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = Duration(30 * time.Second)
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 32 << 20
	}
	if c.Extract.Strategy == "" {
		c.Extract.Strategy = string(report.StrategyLines)
	}
	if c.Store.Key == "" {
		c.Store.Key = DefaultKey
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = Duration(6 * time.Hour)
	}
}

// applyEnv lets secrets come from the environment instead of the config
// file on disk.
func (c *Config) applyEnv() {
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		c.Notify.SMS.AuthToken = v
	}
	if v := os.Getenv("FISHWATCH_ADMIN_HASH"); v != "" {
		c.Admin.PasswordHash = v
	}
}

// Validate checks the parts of the config every mode depends on. Proxy
// requirements are mode-specific and enforced by NewService.
func (c *Config) Validate() error {
	if err := urlcheck.ValidateScheme(c.Source.URL); err != nil {
		return fmt.Errorf("watcher: source url: %w", err)
	}
	if _, err := report.ParseStrategy(c.Extract.Strategy); err != nil {
		return fmt.Errorf("watcher: extract strategy: %w", err)
	}
	return nil
}
