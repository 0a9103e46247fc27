// Package config provides YAML configuration parsing for insightwatch.
//
// This package enables running insightwatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Atlas Insights
//	port: 8080
//	intelligence_url: ${ATLAS_INTELLIGENCE_URL:-http://localhost:8083}
//	token: ${ATLAS_TOKEN:-}
//	poll_interval: 5s
//	max_attempts: 12
//
//	issues:
//	  - 8d1f0f7e-8c6b-4c55-9d0e-5f0bcb0f3a11
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 8080
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 12

	// minPollInterval keeps a misconfigured dashboard from hammering the
	// insight service.
	minPollInterval = 1 * time.Second
	maxPollInterval = 1 * time.Hour
	maxAttemptsCap  = 1000
)

// Config is the root configuration structure for insightwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Insightwatch" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// IntelligenceURL is the root URL of the insight service.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	IntelligenceURL string `yaml:"intelligence_url"`

	// Token is sent as a bearer token. Supports environment variables.
	Token string `yaml:"token"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each lookup.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Extractor determines where the insight sits in a response.
	Extractor ExtractorConfig `yaml:"extractor"`

	// PollInterval is the time between poll ticks. Defaults to 5s.
	// Must be between 1s and 1h.
	PollInterval Duration `yaml:"poll_interval"`

	// MaxAttempts is the number of poll ticks before giving up.
	// Defaults to 12. Must be between 1 and 1000.
	MaxAttempts int `yaml:"max_attempts"`

	// Issues are watched as soon as the dashboard starts.
	Issues []string `yaml:"issues"`
}

// ExtractorConfig specifies where the insight is found in a response.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	extractor: json:insight
//	extractor: json:data.insight
//	extractor: default
//
// Structured object:
//
//	extractor:
//	  type: json
//	  path: data.insight
type ExtractorConfig struct {
	// Type is the extractor type: "default" or "json".
	Type string

	// Path is the JSON field path (for type: json). An empty path reads
	// the whole body.
	Path string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for ExtractorConfig.
func (e *ExtractorConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return e.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type string `yaml:"type"`
			Path string `yaml:"path"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		e.Type = raw.Type
		e.Path = raw.Path
		return nil
	}

	return fmt.Errorf("extractor must be a string or object, got %v", node.Kind)
}

// parseShorthand parses extractor shorthand syntax.
//
// Supported formats:
//   - "default" → use the default extractor
//   - "json:path" → read the insight from a JSON field
func (e *ExtractorConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if idx := strings.Index(s, ":"); idx != -1 {
		e.Type = s[:idx]
		if e.Type != "json" {
			return fmt.Errorf("unknown extractor type %q", e.Type)
		}
		e.Path = s[idx+1:]
		return nil
	}

	if s != "default" {
		return fmt.Errorf("unknown extractor %q (expected 'default' or 'json:path')", s)
	}
	e.Type = s
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in IntelligenceURL, Token and Header
// values. Defaults are applied for Port (8080), PollInterval (5s) and
// MaxAttempts (12).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.IntelligenceURL == "" {
		return fmt.Errorf("intelligence_url is required")
	}
	expanded, err := expandEnvVars(c.IntelligenceURL)
	if err != nil {
		return fmt.Errorf("intelligence_url: %w", err)
	}
	c.IntelligenceURL = expanded

	parsedURL, err := url.Parse(c.IntelligenceURL)
	if err != nil {
		return fmt.Errorf("invalid intelligence_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("intelligence_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("intelligence_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.Token, err = expandEnvVars(c.Token); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	if c.Timeout != 0 {
		if c.Timeout.Duration() < 0 {
			return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout.Duration())
		}
		if c.Timeout.Duration() < time.Second {
			return fmt.Errorf("timeout must be at least 1s if specified, got %s", c.Timeout.Duration())
		}
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.PollInterval.Duration() > maxPollInterval {
		return fmt.Errorf("poll_interval must not exceed %s, got %s", maxPollInterval, c.PollInterval.Duration())
	}

	if c.MaxAttempts < 1 || c.MaxAttempts > maxAttemptsCap {
		return fmt.Errorf("max_attempts must be between 1 and %d, got %d", maxAttemptsCap, c.MaxAttempts)
	}

	if err := validateExtractor(c.Extractor); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Issues))
	for i, id := range c.Issues {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("issues[%d]: id cannot be empty", i)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("issues[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		c.Issues[i] = id
	}

	return nil
}

// validateExtractor validates an extractor configuration.
func validateExtractor(e ExtractorConfig) error {
	switch e.Type {
	case "", "default", "json":
		return nil
	default:
		return fmt.Errorf("extractor: unknown type %q", e.Type)
	}
}
