// Package config loads kiln settings from a YAML file, KILN_* environment
// variables and command-line flags through viper.
//
// Precedence, highest first: flags bound with BindPFlag, environment, config
// file, defaults. Keys are dotted (wait.timeout) and map to environment
// variables by upper-casing and replacing dots with underscores
// (KILN_WAIT_TIMEOUT).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	kilnlibvirt "github.com/jbweber/kiln/internal/libvirt"
	kilnlog "github.com/jbweber/kiln/internal/log"
	"github.com/jbweber/kiln/internal/vm"
	"github.com/jbweber/kiln/internal/watch"
)

const (
	// EnvPrefix prefixes every environment variable kiln reads.
	EnvPrefix = "KILN"

	// DefaultFileName is looked up in the home directory when no config
	// file is given.
	DefaultFileName = ".kiln.yaml"
)

// Config is the complete kiln configuration.
type Config struct {
	URI     string        `mapstructure:"uri" yaml:"uri"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Connect ConnectConfig `mapstructure:"connect" yaml:"connect"`
	Wait    WaitConfig    `mapstructure:"wait" yaml:"wait"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// ConnectConfig controls how hypervisor connections are dialed.
type ConnectConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SSHKey     string        `mapstructure:"ssh_key" yaml:"ssh_key,omitempty"`
	KnownHosts string        `mapstructure:"known_hosts" yaml:"known_hosts,omitempty"`
	PKIPath    string        `mapstructure:"pki_path" yaml:"pki_path,omitempty"`
	Insecure   bool          `mapstructure:"insecure" yaml:"insecure"`
}

// WaitConfig controls convergence waits for start and stop.
type WaitConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// WatchConfig controls the polling watcher.
type WatchConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	History     string        `mapstructure:"history" yaml:"history,omitempty"`
	MetricsAddr string        `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
}

// SetDefaults registers the default value of every key on v. Keys must be
// registered for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("uri", kilnlibvirt.DefaultURI)
	v.SetDefault("log.level", string(kilnlog.InfoLevel))
	v.SetDefault("log.json", false)
	v.SetDefault("connect.timeout", kilnlibvirt.DefaultTimeout)
	v.SetDefault("connect.ssh_key", "")
	v.SetDefault("connect.known_hosts", "")
	v.SetDefault("connect.pki_path", "")
	v.SetDefault("connect.insecure", false)
	v.SetDefault("wait.timeout", vm.DefaultWaitTimeout)
	v.SetDefault("wait.initial_interval", vm.DefaultBackoff().Initial)
	v.SetDefault("wait.max_interval", vm.DefaultBackoff().Max)
	v.SetDefault("watch.interval", watch.DefaultInterval)
	v.SetDefault("watch.history", "")
	v.SetDefault("watch.metrics_addr", "")
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile reads the config file at path into v. With an empty path it reads
// $HOME/.kiln.yaml if that file exists; a missing default file is not an
// error. It returns the file used, or "" when none was read.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		path = filepath.Join(home, DefaultFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return v.ConfigFileUsed(), nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors. It does not contact the
// hypervisor.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return fmt.Errorf("uri is required")
	}
	if _, err := kilnlibvirt.ParseURI(c.URI); err != nil {
		return fmt.Errorf("uri: %w", err)
	}

	switch kilnlog.Level(strings.ToLower(c.Log.Level)) {
	case kilnlog.DebugLevel, kilnlog.InfoLevel, kilnlog.WarnLevel, kilnlog.ErrorLevel:
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{"connect.timeout", c.Connect.Timeout},
		{"wait.timeout", c.Wait.Timeout},
		{"wait.initial_interval", c.Wait.InitialInterval},
		{"wait.max_interval", c.Wait.MaxInterval},
		{"watch.interval", c.Watch.Interval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be > 0, got %s", d.key, d.d)
		}
	}

	if c.Wait.InitialInterval > c.Wait.MaxInterval {
		return fmt.Errorf("wait.initial_interval (%s) must not exceed wait.max_interval (%s)",
			c.Wait.InitialInterval, c.Wait.MaxInterval)
	}

	return nil
}

// ConnectOptions returns the dial options for internal/libvirt.
func (c *Config) ConnectOptions() kilnlibvirt.Options {
	return kilnlibvirt.Options{
		Timeout:        c.Connect.Timeout,
		SSHKeyFile:     c.Connect.SSHKey,
		KnownHostsFile: c.Connect.KnownHosts,
		PKIPath:        c.Connect.PKIPath,
		Insecure:       c.Connect.Insecure,
	}
}

// Backoff returns the poll schedule for convergence waits.
func (c *Config) Backoff() vm.Backoff {
	b := vm.DefaultBackoff()
	b.Initial = c.Wait.InitialInterval
	b.Max = c.Wait.MaxInterval
	return b
}

// NewClient builds a lifecycle client from the configuration.
func (c *Config) NewClient() *vm.Client {
	client := vm.NewClient(c.URI, c.ConnectOptions())
	client.Waiter = vm.StateWaiter{Backoff: c.Backoff()}
	client.WaitTimeout = c.Wait.Timeout
	return client
}

// LoggerConfig returns the logger settings for internal/log.
func (c *Config) LoggerConfig() kilnlog.Config {
	return kilnlog.Config{
		Level:      kilnlog.Level(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}
