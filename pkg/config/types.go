package config

import (
	"fmt"
	"time"
)

// Config represents the persistent spool configuration stored as config.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Client  ClientConfig  `toml:"client"`
	History HistoryConfig `toml:"history"`
	Serve   ServeConfig   `toml:"serve"`
}

// ClientConfig holds settings for connecting to a generation endpoint.
// Timeouts are duration strings ("10s", "500ms").
type ClientConfig struct {
	Endpoint       string `toml:"endpoint,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	Model          string `toml:"model,omitempty"`
	ConnectTimeout string `toml:"connect_timeout,omitempty"`
	ChunkTimeout   string `toml:"chunk_timeout,omitempty"`
}

// HistoryConfig holds session history storage settings.
// Driver is one of "inmemory", "sqlite", or "postgres".
type HistoryConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ServeConfig holds settings for the local mock generation server.
type ServeConfig struct {
	Listen string `toml:"listen,omitempty"`
	Script string `toml:"script,omitempty"`
	APIKey string `toml:"api_key,omitempty"`
}

// historyDrivers is the set of recognized history.driver values.
var historyDrivers = map[string]bool{
	"inmemory": true,
	"sqlite":   true,
	"postgres": true,
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.endpoint": {
		get: func(c *Config) string { return c.Client.Endpoint },
		set: func(c *Config, v string) error { c.Client.Endpoint = v; return nil },
	},
	"client.api_key": {
		get: func(c *Config) string { return c.Client.APIKey },
		set: func(c *Config, v string) error { c.Client.APIKey = v; return nil },
	},
	"client.model": {
		get: func(c *Config) string { return c.Client.Model },
		set: func(c *Config, v string) error { c.Client.Model = v; return nil },
	},
	"client.connect_timeout": {
		get: func(c *Config) string { return c.Client.ConnectTimeout },
		set: func(c *Config, v string) error {
			if err := validDuration("client.connect_timeout", v); err != nil {
				return err
			}
			c.Client.ConnectTimeout = v
			return nil
		},
	},
	"client.chunk_timeout": {
		get: func(c *Config) string { return c.Client.ChunkTimeout },
		set: func(c *Config, v string) error {
			if err := validDuration("client.chunk_timeout", v); err != nil {
				return err
			}
			c.Client.ChunkTimeout = v
			return nil
		},
	},
	"history.driver": {
		get: func(c *Config) string { return c.History.Driver },
		set: func(c *Config, v string) error {
			if !historyDrivers[v] {
				return fmt.Errorf("invalid value for history.driver: %q (available: inmemory, sqlite, postgres)", v)
			}
			c.History.Driver = v
			return nil
		},
	},
	"history.sqlite_path": {
		get: func(c *Config) string { return c.History.SQLitePath },
		set: func(c *Config, v string) error { c.History.SQLitePath = v; return nil },
	},
	"history.postgres_dsn": {
		get: func(c *Config) string { return c.History.PostgresDSN },
		set: func(c *Config, v string) error { c.History.PostgresDSN = v; return nil },
	},
	"serve.listen": {
		get: func(c *Config) string { return c.Serve.Listen },
		set: func(c *Config, v string) error { c.Serve.Listen = v; return nil },
	},
	"serve.script": {
		get: func(c *Config) string { return c.Serve.Script },
		set: func(c *Config, v string) error { c.Serve.Script = v; return nil },
	},
	"serve.api_key": {
		get: func(c *Config) string { return c.Serve.APIKey },
		set: func(c *Config, v string) error { c.Serve.APIKey = v; return nil },
	},
}

func validDuration(key, v string) error {
	if _, err := time.ParseDuration(v); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
