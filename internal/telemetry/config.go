package telemetry

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// DefaultServiceName identifies the process in exported telemetry
	DefaultServiceName = "ambari-sync"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the trace sampling ratio used when none is configured
	DefaultSampling = 0.05
)

// Metric exporters
const (
	// ExporterOTLP pushes metrics to the OTLP collector
	ExporterOTLP = "otlp"
	// ExporterPrometheus serves metrics for scraping on the control server
	ExporterPrometheus = "prometheus"
)

// Config is the telemetry section of the configuration file
type Config struct {
	// Enabled turns on the SDK providers. When false every instrument is a no-op.
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "ambari-sync"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP/HTTP collector as host:port
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends OTLP over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of sampled traces in [0, 1]. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporters lists where metrics go: "otlp", "prometheus" or both.
	// Empty means otlp only.
	Exporters []string `yaml:"exporters,omitempty"`
}

// GetServiceName returns the service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c == nil || c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version or "unknown"
func (c *Config) GetServiceVersion() string {
	if c == nil || c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c == nil || c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetInsecure reports whether OTLP uses plain HTTP
func (c *Config) GetInsecure() bool {
	return c != nil && c.Insecure
}

// GetSampling returns the sampling ratio. An explicit 0 cannot be told apart
// from an unset value and also yields DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetExporters returns the configured metric exporters, otlp when none are set
func (c *MetricsConfig) GetExporters() []string {
	if c == nil || len(c.Exporters) == 0 {
		return []string{ExporterOTLP}
	}
	return c.Exporters
}

// Exports reports whether metrics go to exporter
func (c *MetricsConfig) Exports(exporter string) bool {
	return c != nil && c.Enabled && slices.Contains(c.GetExporters(), exporter)
}

// Validate checks an enabled configuration. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}
	return nil
}

// Validate checks the exporter names
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	seen := make(map[string]bool, len(c.Exporters))
	for _, e := range c.Exporters {
		switch {
		case e != ExporterOTLP && e != ExporterPrometheus:
			errs = append(errs, fmt.Errorf("unknown exporter %q (expected %q or %q)", e, ExporterOTLP, ExporterPrometheus))
		case seen[e]:
			errs = append(errs, fmt.Errorf("exporter %q listed twice", e))
		}
		seen[e] = true
	}
	return errors.Join(errs...)
}
