package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/github"
	"github.com/kerlexov/bugreport-go-sdk/pkg/media"
	"github.com/kerlexov/bugreport-go-sdk/pkg/monitoring"
	"github.com/kerlexov/bugreport-go-sdk/pkg/retry"
)

const envPrefix = "BUGREPORT_"

// AppConfig describes the host application
type AppConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Env         string `yaml:"env" validate:"oneof=development production test"`
	Version     string `yaml:"version"`
	BuildNumber string `yaml:"build_number"`
}

// GitHubConfig contains the issue tracker settings
type GitHubConfig struct {
	Token        string                         `yaml:"token"`
	Owner        string                         `yaml:"owner"`
	Repo         string                         `yaml:"repo"`
	BaseURL      string                         `yaml:"base_url" validate:"required,url"`
	Timeout      time.Duration                  `yaml:"timeout" validate:"min=1s,max=5m"`
	Labels       []string                       `yaml:"labels"`
	MaxFailures  int                            `yaml:"max_failures" validate:"min=0,max=100"`
	BreakerReset time.Duration                  `yaml:"breaker_reset" validate:"min=0"`
	Retry        retry.ExponentialBackoffConfig `yaml:"retry"`
}

// LogsConfig contains log capture settings
type LogsConfig struct {
	Capacity         int  `yaml:"capacity" validate:"min=1,max=100000"`
	InterceptConsole bool `yaml:"intercept_console"`
	CaptureStdLog    bool `yaml:"capture_std_log"`
}

// CrashConfig contains crash capture settings
type CrashConfig struct {
	Enabled      bool `yaml:"enabled"`
	crash.Config `yaml:",inline"`
}

// NetworkConfig contains network monitor settings
type NetworkConfig struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity" validate:"min=1,max=10000"`
}

// ReplayConfig contains session replay settings
type ReplayConfig struct {
	Enabled   bool          `yaml:"enabled"`
	MaxFrames int           `yaml:"max_frames" validate:"min=1,max=600"`
	Interval  time.Duration `yaml:"interval" validate:"min=10ms,max=1m"`
}

// ReporterConfig contains report submission settings
type ReporterConfig struct {
	AutoIssueSubmission bool   `yaml:"auto_issue_submission"`
	Uploader            string `yaml:"uploader" validate:"oneof=github cloudinary none"`
}

// DiagnosticsConfig contains the debug HTTP surface settings
type DiagnosticsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr" validate:"required_if=Enabled true"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	MaxLogLines   int    `yaml:"max_log_lines" validate:"min=0,max=100000"`
}

// Config represents the complete SDK configuration
type Config struct {
	App         AppConfig              `yaml:"app"`
	GitHub      GitHubConfig           `yaml:"github"`
	Logs        LogsConfig             `yaml:"logs"`
	Crash       CrashConfig            `yaml:"crash"`
	Network     NetworkConfig          `yaml:"network"`
	Replay      ReplayConfig           `yaml:"replay"`
	Reporter    ReporterConfig         `yaml:"reporter"`
	Diagnostics DiagnosticsConfig      `yaml:"diagnostics"`
	RateLimit   github.RateLimitConfig `yaml:"ratelimit"`
	Sentry      monitoring.Config      `yaml:"sentry"`
	Cloudinary  media.Config           `yaml:"cloudinary"`
}

// Validate validates the configuration using struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.ConfigError(err.Error())
	}

	// Partial credentials are almost always a typo
	if c.GitHub.Token != "" && (c.GitHub.Owner == "" || c.GitHub.Repo == "") {
		return errs.ConfigError("github owner and repo are required when a token is set")
	}
	if c.Reporter.Uploader == "cloudinary" && !c.Cloudinary.Enabled() {
		return errs.ConfigError("cloudinary uploader selected but cloudinary credentials are missing")
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	crashCfg := crash.DefaultConfig()
	crashCfg.Dir = ""
	client := github.DefaultConfig()

	return &Config{
		App: AppConfig{
			Name:    "bugreport",
			Env:     "production",
			Version: "0.0.0",
		},
		GitHub: GitHubConfig{
			BaseURL:      client.BaseURL,
			Timeout:      client.Timeout,
			MaxFailures:  client.MaxFailures,
			BreakerReset: client.BreakerReset,
			Retry:        client.Retry,
		},
		Logs: LogsConfig{
			Capacity:         50,
			InterceptConsole: true,
		},
		Crash: CrashConfig{
			Enabled: true,
			Config:  crashCfg,
		},
		Network: NetworkConfig{
			Capacity: 50,
		},
		Replay: ReplayConfig{
			MaxFrames: 30,
			Interval:  500 * time.Millisecond,
		},
		Reporter: ReporterConfig{
			Uploader: "github",
		},
		Diagnostics: DiagnosticsConfig{
			Addr:          "127.0.0.1:9411",
			EnableMetrics: true,
			MaxLogLines:   50,
		},
		RateLimit: client.RateLimit,
		Sentry: monitoring.Config{
			SampleRate: 1.0,
		},
	}
}

// GitHubClient builds the tracker client configuration.
func (c *Config) GitHubClient() github.Config {
	return github.Config{
		Token:        c.GitHub.Token,
		Owner:        c.GitHub.Owner,
		Repo:         c.GitHub.Repo,
		BaseURL:      c.GitHub.BaseURL,
		Timeout:      c.GitHub.Timeout,
		Retry:        c.GitHub.Retry,
		RateLimit:    c.RateLimit,
		MaxFailures:  c.GitHub.MaxFailures,
		BreakerReset: c.GitHub.BreakerReset,
	}
}

// Load loads configuration from file, .env and environment variables
func Load() (*Config, error) {
	config := DefaultConfig()

	// A missing .env is normal
	_ = godotenv.Load()

	configPath := os.Getenv(envPrefix + "CONFIG")
	if configPath == "" {
		possiblePaths := []string{
			"./bugreport.yaml",
			"./bugreport.yml",
			filepath.Join(os.Getenv("HOME"), ".bugreport", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadFromFile loads defaults overlaid with a YAML file, without consulting
// the environment.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := loadFromFile(config, path); err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return errs.SerializationError("invalid yaml", err)
	}
	return nil
}

func loadFromEnv(config *Config) {
	config.App.Env = getenv("APP_ENV", config.App.Env)
	config.App.Version = getenv("APP_VERSION", config.App.Version)
	config.App.BuildNumber = getenv("APP_BUILD", config.App.BuildNumber)

	config.GitHub.Token = getenv("GITHUB_TOKEN", config.GitHub.Token)
	config.GitHub.Owner = getenv("GITHUB_OWNER", config.GitHub.Owner)
	config.GitHub.Repo = getenv("GITHUB_REPO", config.GitHub.Repo)
	config.GitHub.BaseURL = getenv("GITHUB_BASE_URL", config.GitHub.BaseURL)
	config.GitHub.Labels = splitAndTrim(getenv("GITHUB_LABELS", strings.Join(config.GitHub.Labels, ",")))

	config.Logs.Capacity = getInt("LOG_CAPACITY", config.Logs.Capacity)

	config.Crash.Enabled = getBool("CRASH_ENABLED", config.Crash.Enabled)
	config.Crash.Dir = getenv("CRASH_DIR", config.Crash.Dir)
	config.Crash.AutoSubmit = getBool("CRASH_AUTO_SUBMIT", config.Crash.AutoSubmit)
	config.Crash.Email = getenv("CRASH_EMAIL", config.Crash.Email)

	config.Network.Enabled = getBool("NETWORK_ENABLED", config.Network.Enabled)
	config.Reporter.AutoIssueSubmission = getBool("AUTO_ISSUE_SUBMISSION", config.Reporter.AutoIssueSubmission)
	config.Reporter.Uploader = getenv("UPLOADER", config.Reporter.Uploader)

	config.Diagnostics.Enabled = getBool("DIAGNOSTICS_ENABLED", config.Diagnostics.Enabled)
	config.Diagnostics.Addr = getenv("DIAGNOSTICS_ADDR", config.Diagnostics.Addr)

	config.Sentry.DSN = getenv("SENTRY_DSN", config.Sentry.DSN)
	config.Sentry.SampleRate = getFloat("SENTRY_SAMPLE_RATE", config.Sentry.SampleRate)

	config.Cloudinary.CloudName = getenv("CLOUDINARY_CLOUD_NAME", config.Cloudinary.CloudName)
	config.Cloudinary.APIKey = getenv("CLOUDINARY_API_KEY", config.Cloudinary.APIKey)
	config.Cloudinary.APISecret = getenv("CLOUDINARY_API_SECRET", config.Cloudinary.APISecret)
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errs.SerializationError("failed to encode config", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Tokens may be in here
	return os.WriteFile(path, data, 0o600)
}

func getenv(key, def string) string {
	val := strings.TrimSpace(os.Getenv(envPrefix + key))
	if val == "" {
		return def
	}
	return val
}

func getInt(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(envPrefix + key))
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(envPrefix + key))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func getFloat(key string, def float64) float64 {
	val := strings.TrimSpace(os.Getenv(envPrefix + key))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
