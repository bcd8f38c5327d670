package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "REPOSENTINEL_CONFIG"
	githubTokenEnv    = "GITHUB_TOKEN"
	deepseekKeyEnv    = "DEEPSEEK_API_KEY"
	mailjetPublicEnv  = "MAILJET_API_KEY"
	mailjetPrivateEnv = "MAILJET_SECRET_KEY"
	slackWebhookEnv   = "SLACK_WEBHOOK_URL"
	historyDSNEnv     = "HISTORY_DSN"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	GitHub        GitHubConfig       `yaml:"github"`
	Storage       StorageConfig      `yaml:"storage"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	DeepSeek      DeepSeekConfig     `yaml:"deepseek"`
	Notifications NotificationConfig `yaml:"notifications"`
	History       HistoryConfig      `yaml:"history"`
	HackerNews    HackerNewsConfig   `yaml:"hackernews"`
}

// LoggingConfig selects log verbosity and an optional file sink.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GitHubConfig describes upstream API access.
type GitHubConfig struct {
	APIURL         string `yaml:"apiUrl"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Retries        int    `yaml:"retries"`
	PageSize       int    `yaml:"pageSize"`
}

// StorageConfig locates durable state on disk.
type StorageConfig struct {
	SubscriptionsFile string `yaml:"subscriptionsFile"`
	RawDataDir        string `yaml:"rawDataDir"`
	ReportsDir        string `yaml:"reportsDir"`
}

// SchedulerConfig defines when the daily batch run fires.
type SchedulerConfig struct {
	DailyTime        string         `yaml:"dailyTime"`
	Timezone         string         `yaml:"timezone"`
	StopGraceSeconds int            `yaml:"stopGraceSeconds"`
	location         *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// StopGrace returns the bounded wait applied before abandoning an
// in-flight job on Stop.
func (s SchedulerConfig) StopGrace() time.Duration {
	if s.StopGraceSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.StopGraceSeconds) * time.Second
}

// DeepSeekConfig defines how to contact the DeepSeek API.
type DeepSeekConfig struct {
	Endpoint  string  `yaml:"endpoint"`
	Model     string  `yaml:"model"`
	APIKey    string  `yaml:"apiKey"`
	MaxTokens int     `yaml:"maxTokens"`
	Temp      float64 `yaml:"temperature"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Providers []string    `yaml:"providers"`
	Email     EmailConfig `yaml:"email"`
	Slack     SlackConfig `yaml:"slack"`
}

// EmailConfig wires the Mailjet-backed email provider.
type EmailConfig struct {
	PublicKey     string `yaml:"publicKey"`
	PrivateKey    string `yaml:"privateKey"`
	FromAddress   string `yaml:"fromAddress"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// SlackConfig wires the incoming-webhook Slack provider.
type SlackConfig struct {
	WebhookURL    string `yaml:"webhookUrl"`
	MessagePrefix string `yaml:"messagePrefix"`
}

// HistoryConfig enables the optional Postgres processing audit log.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// HackerNewsConfig tunes the trending crawler.
type HackerNewsConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Limit   int    `yaml:"limit"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// ValidateForProcessing rejects configurations that cannot reach upstream.
func (c Config) ValidateForProcessing() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("github token missing: set %s or github.token in config", githubTokenEnv)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(githubTokenEnv); v != "" {
		c.GitHub.Token = v
	}

	if v := os.Getenv(deepseekKeyEnv); v != "" {
		c.DeepSeek.APIKey = v
	}

	if v := os.Getenv(mailjetPublicEnv); v != "" {
		c.Notifications.Email.PublicKey = v
	}

	if v := os.Getenv(mailjetPrivateEnv); v != "" {
		c.Notifications.Email.PrivateKey = v
	}

	if v := os.Getenv(slackWebhookEnv); v != "" {
		c.Notifications.Slack.WebhookURL = v
	}

	if v := os.Getenv(historyDSNEnv); v != "" {
		c.History.DSN = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.GitHub.APIURL != "" {
		base.GitHub.APIURL = override.GitHub.APIURL
	}
	if override.GitHub.Token != "" {
		base.GitHub.Token = override.GitHub.Token
	}
	if override.GitHub.TimeoutSeconds > 0 {
		base.GitHub.TimeoutSeconds = override.GitHub.TimeoutSeconds
	}
	if override.GitHub.Retries > 0 {
		base.GitHub.Retries = override.GitHub.Retries
	}
	if override.GitHub.PageSize > 0 {
		base.GitHub.PageSize = override.GitHub.PageSize
	}

	if override.Storage.SubscriptionsFile != "" {
		base.Storage.SubscriptionsFile = override.Storage.SubscriptionsFile
	}
	if override.Storage.RawDataDir != "" {
		base.Storage.RawDataDir = override.Storage.RawDataDir
	}
	if override.Storage.ReportsDir != "" {
		base.Storage.ReportsDir = override.Storage.ReportsDir
	}

	if override.Scheduler.DailyTime != "" {
		base.Scheduler.DailyTime = override.Scheduler.DailyTime
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.StopGraceSeconds > 0 {
		base.Scheduler.StopGraceSeconds = override.Scheduler.StopGraceSeconds
	}

	if override.DeepSeek.Endpoint != "" {
		base.DeepSeek.Endpoint = override.DeepSeek.Endpoint
	}
	if override.DeepSeek.Model != "" {
		base.DeepSeek.Model = override.DeepSeek.Model
	}
	if override.DeepSeek.APIKey != "" {
		base.DeepSeek.APIKey = override.DeepSeek.APIKey
	}
	if override.DeepSeek.MaxTokens > 0 {
		base.DeepSeek.MaxTokens = override.DeepSeek.MaxTokens
	}
	if override.DeepSeek.Temp > 0 {
		base.DeepSeek.Temp = override.DeepSeek.Temp
	}

	if len(override.Notifications.Providers) > 0 {
		base.Notifications.Providers = override.Notifications.Providers
	}
	if override.Notifications.Email.PublicKey != "" {
		base.Notifications.Email.PublicKey = override.Notifications.Email.PublicKey
	}
	if override.Notifications.Email.PrivateKey != "" {
		base.Notifications.Email.PrivateKey = override.Notifications.Email.PrivateKey
	}
	if override.Notifications.Email.FromAddress != "" {
		base.Notifications.Email.FromAddress = override.Notifications.Email.FromAddress
	}
	if override.Notifications.Email.SubjectPrefix != "" {
		base.Notifications.Email.SubjectPrefix = override.Notifications.Email.SubjectPrefix
	}
	if override.Notifications.Slack.WebhookURL != "" {
		base.Notifications.Slack.WebhookURL = override.Notifications.Slack.WebhookURL
	}
	if override.Notifications.Slack.MessagePrefix != "" {
		base.Notifications.Slack.MessagePrefix = override.Notifications.Slack.MessagePrefix
	}

	if override.History.DSN != "" {
		base.History.DSN = override.History.DSN
	}

	if override.HackerNews.BaseURL != "" {
		base.HackerNews.BaseURL = override.HackerNews.BaseURL
	}
	if override.HackerNews.Limit > 0 {
		base.HackerNews.Limit = override.HackerNews.Limit
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		GitHub: GitHubConfig{
			APIURL:         "https://api.github.com",
			TimeoutSeconds: 10,
			Retries:        3,
			PageSize:       100,
		},
		Storage: StorageConfig{
			SubscriptionsFile: "data/subscriptions.json",
			RawDataDir:        "data/raw_subscription_data",
			ReportsDir:        "ai_reports",
		},
		Scheduler: SchedulerConfig{
			DailyTime:        "02:00",
			Timezone:         defaultTimezone,
			StopGraceSeconds: 30,
			location:         tz,
		},
		DeepSeek: DeepSeekConfig{
			Endpoint:  "https://api.deepseek.com/v1/chat/completions",
			Model:     "deepseek-chat",
			MaxTokens: 1000,
			Temp:      0.3,
		},
		Notifications: NotificationConfig{
			Providers: []string{"email"},
			Email:     EmailConfig{SubjectPrefix: "[RepoSentinel] "},
			Slack:     SlackConfig{MessagePrefix: "Repository update: "},
		},
		HackerNews: HackerNewsConfig{
			BaseURL: "https://news.ycombinator.com",
			Limit:   10,
		},
	}
}
