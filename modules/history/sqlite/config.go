package sqlite

import (
	"errors"
	"fmt"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "chatrelay.db"
)

// Config holds the SQLite history module configuration.
type Config struct {
	// Path is the database file. Defaults to {DataDir}/chatrelay.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is how long, in milliseconds, a writer waits on a lock.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		on := true
		c.WAL = &on
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Path == "" {
		return errors.New("sqlite: path is required")
	}
	return nil
}
