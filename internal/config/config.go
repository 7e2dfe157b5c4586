// Package config handles gateway configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Integrations IntegrationsConfig `json:"integrations"`
	Session      SessionConfig      `json:"session"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig defines the gateway's listener settings.
type ServerConfig struct {
	Port       int    `json:"port"`                  // TCP port the gateway listens on
	Stage      string `json:"stage"`                 // deployment stage name, e.g. "dev"
	APIID      string `json:"api_id"`                // identifier embedded in dispatched events
	DomainName string `json:"domain_name,omitempty"` // defaults to "localhost:<port>"
}

// IntegrationMode selects the wire shape used when dispatching events to the backend.
type IntegrationMode string

const (
	ModeLambdaProxy  IntegrationMode = "lambda-proxy"
	ModeHTTPHeaders  IntegrationMode = "http-headers"
)

// IntegrationsConfig defines how inbound events are routed and dispatched.
type IntegrationsConfig struct {
	Mode                   IntegrationMode   `json:"mode,omitempty"` // "lambda-proxy" (default) or "http-headers"
	RouteSelectExpression  string            `json:"route_selection_expression,omitempty"`
	Table                  map[string]string `json:"table"` // route key -> backend URI, e.g. "$connect": "http://..."
}

// SessionConfig defines per-connection timeout behavior.
type SessionConfig struct {
	IdleTimeout Duration `json:"idle_timeout,omitempty"` // resettable; default 10m
	HardTimeout Duration `json:"hard_timeout,omitempty"` // never reset; default 2h
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // "debug", "info", "warn", "error"; default "info"
	Format string `json:"format,omitempty"` // "json" (default) or "text"
}

// Duration is a JSON-friendly time.Duration accepting either a Go duration
// string ("30s") or a bare number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = dur
	case float64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Integrations.Mode {
	case "", ModeLambdaProxy, ModeHTTPHeaders:
	default:
		return fmt.Errorf("integrations.mode must be %q or %q", ModeLambdaProxy, ModeHTTPHeaders)
	}
	if c.Integrations.RouteSelectExpression != "" {
		if !strings.HasPrefix(c.Integrations.RouteSelectExpression, "$request.body.") {
			return fmt.Errorf("integrations.route_selection_expression must start with %q", "$request.body.")
		}
	}
	for key := range c.Integrations.Table {
		if key == "" {
			return fmt.Errorf("integrations.table contains an empty route key")
		}
	}
	if c.Integrations.Table["$connect"] == "" {
		return fmt.Errorf("integrations.table must define %q", "$connect")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Stage == "" {
		c.Server.Stage = "dev"
	}
	if c.Server.APIID == "" {
		c.Server.APIID = "localwsapi"
	}
	if c.Server.DomainName == "" {
		c.Server.DomainName = fmt.Sprintf("localhost:%d", c.Server.Port)
	}
	if c.Integrations.Mode == "" {
		c.Integrations.Mode = ModeLambdaProxy
	}
	if c.Integrations.Table == nil {
		c.Integrations.Table = map[string]string{}
	}
	if c.Session.IdleTimeout.Duration == 0 {
		c.Session.IdleTimeout.Duration = 10 * time.Minute
	}
	if c.Session.HardTimeout.Duration == 0 {
		c.Session.HardTimeout.Duration = 2 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
