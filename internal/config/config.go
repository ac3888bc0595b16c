package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultAdminPassword is the insecure placeholder; startup warns when it is active.
const DefaultAdminPassword = "1234"

// Config holds server configuration values.
type Config struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port"`
	AdminPassword     string        `mapstructure:"admin_password" yaml:"admin_password"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash" yaml:"admin_password_hash"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ClearOnRotate     bool          `mapstructure:"clear_on_rotate" yaml:"clear_on_rotate"`
	StaticDir         string        `mapstructure:"static_dir" yaml:"static_dir"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerSec   float64       `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Port:              3000,
		AdminPassword:     DefaultAdminPassword,
		IdleTimeout:       6 * time.Hour,
		StaticDir:         "public",
		MaxMessageBytes:   64 << 10,
		RateLimitPerSec:   10,
		RateLimitBurst:    20,
		PingInterval:      25 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesDefaultPassword reports whether the placeholder secret is in effect.
func (c *Config) UsesDefaultPassword() bool {
	return c.AdminPasswordHash == "" && c.AdminPassword == DefaultAdminPassword
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("admin_password or admin_password_hash is required"))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle_timeout must be positive"))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("max_message_bytes must be positive"))
	}
	if c.RateLimitPerSec < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.RateLimitPerSec > 0 && c.RateLimitBurst == 0 {
		errs = append(errs, errors.New("rate_limit_burst must be positive when rate_limit_per_sec is set"))
	}
	return errors.Join(errs...)
}
