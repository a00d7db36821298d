// Package config loads the gateway's server configuration. The routes file
// has its own parser (package routeconf); this file covers everything
// around it: listeners, database, timeouts, authentication.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Duration wraps time.Duration for YAML fields written as "30s", "1m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(v)
	return nil
}

// Config is the server configuration document.
type Config struct {
	Address        string   `yaml:"address"`
	MetricsAddress string   `yaml:"metricsAddress"`
	RoutesFile     string   `yaml:"routes"`
	PipelinesDir   string   `yaml:"pipelines"`
	MaxBodyBytes   int64    `yaml:"maxBodyBytes"`
	ActionTimeout  Duration `yaml:"actionTimeout"`
	Ping           bool     `yaml:"ping"`

	Database struct {
		URL            string   `yaml:"url"`
		PoolSize       int32    `yaml:"poolSize"`
		ConnectTimeout Duration `yaml:"connectTimeout"`
	} `yaml:"database"`

	NodeJs struct {
		Command string `yaml:"command"`
	} `yaml:"nodejs"`

	HMAC struct {
		Enabled       bool   `yaml:"enabled"`
		KeysFile      string `yaml:"keys"`
		TrustLoopback bool   `yaml:"trustLoopback"`
	} `yaml:"hmac"`

	Log struct {
		Level             string `yaml:"level"`
		JSON              bool   `yaml:"json"`
		AccessLogDisabled bool   `yaml:"accessLogDisabled"`
	} `yaml:"log"`
}

// Defaults returns a configuration with the documented default values.
func Defaults() *Config {
	c := &Config{
		Address:       ":3010",
		RoutesFile:    "routes.conf",
		MaxBodyBytes:  1 << 20,
		ActionTimeout: Duration(30 * time.Second),
		Ping:          true,
	}

	c.Database.PoolSize = 10
	c.Database.ConnectTimeout = Duration(time.Minute)
	c.HMAC.TrustLoopback = true
	return c
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	c := Defaults()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return c, nil
}
