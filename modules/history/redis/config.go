package redis

import (
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultAddr        = "localhost:6379"
	defaultPrefix      = "chatrelay"
	defaultDialTimeout = 5 * time.Second
)

// Config holds the Redis history module configuration.
type Config struct {
	// URL is a redis:// URL. When set it takes precedence over Addr,
	// Username, Password and DB.
	URL string `yaml:"url"`

	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix namespaces every key this store writes.
	Prefix string `yaml:"prefix"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = os.Getenv("REDIS_URL")
	}
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
}

func (c *Config) validate() error {
	if c.DB < 0 {
		return fmt.Errorf("redis: db must be non-negative, got %d", c.DB)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("redis: dial_timeout must be non-negative, got %s", c.DialTimeout)
	}
	return nil
}

func (c *Config) options() (*goredis.Options, error) {
	if c.URL != "" {
		opts, err := goredis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts.DialTimeout = c.DialTimeout
		return opts, nil
	}
	return &goredis.Options{
		Addr:        c.Addr,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	}, nil
}
