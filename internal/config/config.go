package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the config file read when no path is given.
const ConfigPath = "config.yaml"

const (
	defaultListenAddr       = "127.0.0.1:6868"
	defaultOperatorNickname = "cat in the machine"
	defaultOperatorAddr     = "127.0.0.1"
	defaultRateLimitWindow  = "1m"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	ListenAddr           string   `yaml:"listenAddr"`
	LogLevel             string   `yaml:"logLevel"`
	OperatorNickname     string   `yaml:"operatorNickname"`
	OperatorAddr         string   `yaml:"operatorAddr"`
	MaxConnections       int      `yaml:"maxConnections"`
	SeedPath             string   `yaml:"seedPath"`
	AllowedNetworks      []string `yaml:"allowedNetworks"`
	RedisAddr            string   `yaml:"redisAddr"`
	RedisPassword        string   `yaml:"redisPassword"`
	RateLimitConnections int      `yaml:"rateLimitConnections"`
	RateLimitWindow      string   `yaml:"rateLimitWindow"`
	EventsStream         string   `yaml:"eventsStream"`
	EventsMaxLen         int64    `yaml:"eventsMaxLen"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error: defaults and environment overrides still apply.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Override with environment variables
	if v := os.Getenv("CATLIB_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CATLIB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CATLIB_OPERATOR_NICKNAME"); v != "" {
		cfg.OperatorNickname = v
	}
	if v := os.Getenv("CATLIB_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConnections = n
		}
	}
	if v := os.Getenv("CATLIB_SEED_PATH"); v != "" {
		cfg.SeedPath = v
	}
	if v := os.Getenv("CATLIB_ALLOWED_NETWORKS"); v != "" {
		cfg.AllowedNetworks = splitCSV(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("CATLIB_RATE_LIMIT_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitConnections = n
		}
	}
	if v := os.Getenv("CATLIB_RATE_LIMIT_WINDOW"); v != "" {
		cfg.RateLimitWindow = v
	}
	if v := os.Getenv("CATLIB_EVENTS_STREAM"); v != "" {
		cfg.EventsStream = v
	}

	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(cfg.OperatorNickname) == "" {
		cfg.OperatorNickname = defaultOperatorNickname
	}
	if strings.TrimSpace(cfg.OperatorAddr) == "" {
		cfg.OperatorAddr = defaultOperatorAddr
	}
	if strings.TrimSpace(cfg.RateLimitWindow) == "" {
		cfg.RateLimitWindow = defaultRateLimitWindow
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return errors.New("config: listenAddr is required")
	}
	if cfg.MaxConnections < 0 {
		return errors.New("config: maxConnections must not be negative")
	}
	if _, err := netip.ParseAddr(strings.TrimSpace(cfg.OperatorAddr)); err != nil {
		return fmt.Errorf("config: operatorAddr: %w", err)
	}
	if cfg.RateLimitConnections < 0 {
		return errors.New("config: rateLimitConnections must not be negative")
	}
	if _, err := ParseRateLimitWindow(cfg.RateLimitWindow); err != nil {
		return err
	}
	if cfg.RateLimitConnections > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: rateLimitConnections requires redisAddr (set in config.yaml or REDIS_ADDR)")
	}
	if strings.TrimSpace(cfg.EventsStream) != "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: eventsStream requires redisAddr (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.EventsMaxLen < 0 {
		return errors.New("config: eventsMaxLen must not be negative")
	}
	return nil
}

// ParseRateLimitWindow parses the rate limit window duration.
func ParseRateLimitWindow(raw string) (time.Duration, error) {
	window, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: rateLimitWindow: %w", err)
	}
	if window <= 0 {
		return 0, errors.New("config: rateLimitWindow must be positive")
	}
	return window, nil
}

// OperatorAddress returns the parsed operator address.
func (c FileConfig) OperatorAddress() netip.Addr {
	addr, err := netip.ParseAddr(strings.TrimSpace(c.OperatorAddr))
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
