package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfmyers9/loopwatch/internal/target"
	"github.com/spf13/viper"
)

// envKeyReplacer maps nested keys like browser.headless to LOOPWATCH_BROWSER_HEADLESS
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds application configuration
type Config struct {
	// Address played when none is given on the command line
	DefaultURL string

	// Seconds between player state queries
	PollInterval int

	// Seconds to wait before starting the next attempt
	RestartDelay int

	// Seconds to wait for page elements to appear
	WaitTimeout int

	// Directory for the status file and session history
	// Default: ~/.local/share/loopwatch
	DataDir string

	Browser BrowserConfig
	Status  StatusConfig
	Metrics MetricsConfig
}

// BrowserConfig holds browser launch settings
type BrowserConfig struct {
	ExecPath   string
	Headless   bool
	ExtraFlags []string
}

// StatusConfig controls the output of the status command
type StatusConfig struct {
	// Go template rendered against the live status
	// Default: "{{.Phase}} {{.VideoID}}"
	OutputFormat string

	// Fixed output width (0 = disabled)
	OutputWidth int
}

// MetricsConfig controls the optional HTTP endpoint
type MetricsConfig struct {
	// Listen address for /metrics and /status; empty disables the endpoint
	Addr string
}

// PollIntervalDuration returns PollInterval as a time.Duration
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// RestartDelayDuration returns RestartDelay as a time.Duration
func (c *Config) RestartDelayDuration() time.Duration {
	return time.Duration(c.RestartDelay) * time.Second
}

// WaitTimeoutDuration returns WaitTimeout as a time.Duration
func (c *Config) WaitTimeoutDuration() time.Duration {
	return time.Duration(c.WaitTimeout) * time.Second
}

// Validate rejects timing values the loop cannot run with
func (c *Config) Validate() error {
	for _, f := range []struct {
		key   string
		value int
	}{
		{"poll_interval", c.PollInterval},
		{"restart_delay", c.RestartDelay},
		{"wait_timeout", c.WaitTimeout},
	} {
		if f.value <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds, got %d", f.key, f.value)
		}
	}
	return nil
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return load(getConfigDir())
}

func load(configDir string) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("default_url", target.DefaultURL)
	v.SetDefault("poll_interval", 2)
	v.SetDefault("restart_delay", 5)
	v.SetDefault("wait_timeout", 15)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.extra_flags", []string{})
	v.SetDefault("status.output_format", "{{.Phase}} {{.VideoID}}")
	v.SetDefault("status.output_width", 0)
	v.SetDefault("metrics.addr", "")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	v.SetEnvPrefix("LOOPWATCH")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		DefaultURL:   v.GetString("default_url"),
		PollInterval: v.GetInt("poll_interval"),
		RestartDelay: v.GetInt("restart_delay"),
		WaitTimeout:  v.GetInt("wait_timeout"),
		DataDir:      v.GetString("data_dir"),
		Browser: BrowserConfig{
			ExecPath:   v.GetString("browser.exec_path"),
			Headless:   v.GetBool("browser.headless"),
			ExtraFlags: v.GetStringSlice("browser.extra_flags"),
		},
		Status: StatusConfig{
			OutputFormat: v.GetString("status.output_format"),
			OutputWidth:  v.GetInt("status.output_width"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "loopwatch")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// defaultDataDir returns ~/.local/share/loopwatch, or a relative fallback
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".loopwatch")
	}
	return filepath.Join(homeDir, ".local", "share", "loopwatch")
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.saveTo(getConfigDir())
}

func (c *Config) saveTo(configDir string) error {
	v := viper.New()

	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("default_url", c.DefaultURL)
	v.Set("poll_interval", c.PollInterval)
	v.Set("restart_delay", c.RestartDelay)
	v.Set("wait_timeout", c.WaitTimeout)
	v.Set("data_dir", c.DataDir)
	v.Set("browser.exec_path", c.Browser.ExecPath)
	v.Set("browser.headless", c.Browser.Headless)
	v.Set("browser.extra_flags", c.Browser.ExtraFlags)
	v.Set("status.output_format", c.Status.OutputFormat)
	v.Set("status.output_width", c.Status.OutputWidth)
	v.Set("metrics.addr", c.Metrics.Addr)

	// Write to file
	return v.WriteConfigAs(configFile)
}
