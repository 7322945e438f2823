package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval        = 300 * time.Second
	DefaultTimeout         = 10 * time.Second
	DefaultTimelineTimeout = 15 * time.Second
	DefaultUserAgent       = "fedihealth/1.0"
	DefaultLogLevel        = "warn"
	DefaultAlertThreshold  = 40
	DefaultAlertCooldown   = 15 * time.Minute
	DefaultStatusRPM       = 120
	DefaultStatusBurst     = 60
	DefaultHistorySize     = 60
	DefaultWorkers         = 1
	envPrefix              = "FEDIHEALTH_"
)

// Config is the full runtime configuration. Fields map 1:1 to the YAML file.
type Config struct {
	Instances   []string      `yaml:"instances"`
	Interval    time.Duration `yaml:"interval"`
	Timeouts    Timeouts      `yaml:"timeouts"`
	UserAgent   string        `yaml:"user_agent"`
	Workers     int           `yaml:"workers"`
	Parallel    bool          `yaml:"parallel"`
	Log         Log           `yaml:"log"`
	Alerts      Alerts        `yaml:"alerts"`
	Status      Status        `yaml:"status"`
	HistorySize int           `yaml:"history_size"`
}

type Timeouts struct {
	Default  time.Duration `yaml:"default"`
	Timeline time.Duration `yaml:"timeline"`
}

type Log struct {
	// Dir enables JSON file logging when set; otherwise logs go to stderr.
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type Alerts struct {
	SlackWebhook string        `yaml:"slack_webhook"`
	Threshold    int           `yaml:"threshold"`
	Cooldown     time.Duration `yaml:"cooldown"`
	OnRecovery   bool          `yaml:"on_recovery"`
}

type Status struct {
	// Addr enables the status API in monitor mode when set.
	Addr      string   `yaml:"addr"`
	APIKeys   []string `yaml:"api_keys"`
	AdminKeys []string `yaml:"admin_keys"`
	RPM       int      `yaml:"rpm"`
	Burst     int      `yaml:"burst"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Interval: DefaultInterval,
		Timeouts: Timeouts{
			Default:  DefaultTimeout,
			Timeline: DefaultTimelineTimeout,
		},
		UserAgent: DefaultUserAgent,
		Workers:   DefaultWorkers,
		Log:       Log{Level: DefaultLogLevel},
		Alerts: Alerts{
			Threshold: DefaultAlertThreshold,
			Cooldown:  DefaultAlertCooldown,
		},
		Status: Status{
			RPM:   DefaultStatusRPM,
			Burst: DefaultStatusBurst,
		},
		HistorySize: DefaultHistorySize,
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation, for callers that overlay more settings
// before validating.
func Read(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays FEDIHEALTH_* environment variables on cfg. Unset or
// empty variables leave cfg untouched.
func ApplyEnv(cfg *Config) error {
	var errs error
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = n
	}
	millis := func(name string, dst *time.Duration) {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return
		}
		ms, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = time.Duration(ms) * time.Millisecond
	}
	list := func(name string, dst *[]string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = splitList(v)
		}
	}

	str("LOG_DIR", &cfg.Log.Dir)
	str("LOG_LEVEL", &cfg.Log.Level)
	millis("HTTP_TIMEOUT_MS", &cfg.Timeouts.Default)
	millis("TIMELINE_TIMEOUT_MS", &cfg.Timeouts.Timeline)
	str("USER_AGENT", &cfg.UserAgent)
	str("SLACK_WEBHOOK_URL", &cfg.Alerts.SlackWebhook)
	num("ALERT_THRESHOLD", &cfg.Alerts.Threshold)
	millis("ALERT_COOLDOWN_MS", &cfg.Alerts.Cooldown)
	str("STATUS_ADDR", &cfg.Status.Addr)
	list("STATUS_API_KEYS", &cfg.Status.APIKeys)
	list("STATUS_ADMIN_KEYS", &cfg.Status.AdminKeys)
	num("STATUS_RPM", &cfg.Status.RPM)
	num("STATUS_BURST", &cfg.Status.Burst)
	num("HISTORY_SIZE", &cfg.HistorySize)

	return errs
}

// Validate rejects settings no run could work with.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return errors.New("interval must be positive")
	case c.Timeouts.Default <= 0:
		return errors.New("timeouts.default must be positive")
	case c.Timeouts.Timeline <= 0:
		return errors.New("timeouts.timeline must be positive")
	case c.Alerts.Cooldown < 0:
		return errors.New("alerts.cooldown must not be negative")
	case c.Alerts.Threshold < 0 || c.Alerts.Threshold > 100:
		return fmt.Errorf("alerts.threshold %d outside 0-100", c.Alerts.Threshold)
	case c.Workers < 1:
		return errors.New("workers must be at least 1")
	case c.HistorySize < 1:
		return errors.New("history_size must be at least 1")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
