package telemetry

import (
	"fmt"
	"net/url"
)

const (
	defaultServiceName = "chatrelay"
	defaultSampleRatio = 1.0
)

// Config holds the telemetry module configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP traces URL, for example
	// http://localhost:4318/v1/traces. When empty spans are recorded but
	// never exported.
	Endpoint string `yaml:"endpoint"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers"`

	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root spans kept. Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio"`
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRatio == nil {
		r := defaultSampleRatio
		c.SampleRatio = &r
	}
}

func (c *Config) validate() error {
	if r := *c.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0, 1], got %g", r)
	}
	if c.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("telemetry: endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("telemetry: endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	return nil
}
