// Package config resolves runtime settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServer         = "http://localhost:8000"
	DefaultPollInterval   = 2500 * time.Millisecond
	DefaultRequestTimeout = 60 * time.Second
	DefaultLogLevel       = "info"
)

const (
	EnvConfig       = "PAPERDESK_CONFIG"
	EnvServer       = "PAPERDESK_SERVER"
	EnvPollInterval = "PAPERDESK_POLL_INTERVAL"
	EnvCacheDir     = "PAPERDESK_CACHE_DIR"
	EnvLogFile      = "PAPERDESK_LOG_FILE"
	EnvLogLevel     = "PAPERDESK_LOG_LEVEL"
)

// Config holds everything the program needs at start-up.
type Config struct {
	Server         string        `yaml:"server"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CacheDir       string        `yaml:"cache_dir"`
	LogFile        string        `yaml:"log_file"`
	LogLevel       string        `yaml:"log_level"`
	NoAltScreen    bool          `yaml:"no_alt_screen"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server:         DefaultServer,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Load parses args (without the program name) and merges every source.
// getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	fs := flag.NewFlagSet("paperdesk", flag.ContinueOnError)
	if usage != nil {
		fs.SetOutput(usage)
	}
	configPath := fs.String("config", "", "path to a YAML config file (env "+EnvConfig+")")
	server := fs.String("server", "", "paper service base URL (default "+DefaultServer+")")
	pollInterval := fs.Duration("poll-interval", 0, "delay between status checks while a paper is processing")
	timeout := fs.Duration("timeout", 0, "per-request timeout")
	cacheDir := fs.String("cache-dir", "", "directory for downloaded papers")
	logFile := fs.String("log-file", "", "write logs to this file (logging is off otherwise)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	noAltScreen := fs.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(getenv(EnvConfig))
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.mergeEnv(getenv); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Server = *server
		case "poll-interval":
			cfg.PollInterval = *pollInterval
		case "timeout":
			cfg.RequestTimeout = *timeout
		case "cache-dir":
			cfg.CacheDir = *cacheDir
		case "log-file":
			cfg.LogFile = *logFile
		case "log-level":
			cfg.LogLevel = *logLevel
		case "no-alt-screen":
			cfg.NoAltScreen = *noAltScreen
		}
	})

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvServer)); v != "" {
		c.Server = v
	}
	if v := strings.TrimSpace(getenv(EnvPollInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPollInterval, v, err)
		}
		c.PollInterval = d
	}
	if v := strings.TrimSpace(getenv(EnvCacheDir)); v != "" {
		c.CacheDir = v
	}
	if v := strings.TrimSpace(getenv(EnvLogFile)); v != "" {
		c.LogFile = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) normalize() {
	c.Server = strings.TrimRight(strings.TrimSpace(c.Server), "/")
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate rejects settings the program cannot run with.
func (c Config) Validate() error {
	parsed, err := url.Parse(c.Server)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid server %q, expected an http(s) URL", c.Server)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval %s, expected > 0", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout %s, expected > 0", c.RequestTimeout)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}
