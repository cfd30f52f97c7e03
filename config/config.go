// Package config provides YAML configuration parsing for lettersync.
//
// One file configures both halves of the tool: the sync client (`lettersync
// sync`) and the reference letter-status server (`lettersync serve`).
//
// Example configuration:
//
//	title: Letters
//	base_url: http://localhost:8080
//	page_path: /letter_status
//	poll_interval: 30s
//	highlight_duration: 3s
//	request_timeout: 10s
//	single_flight: true
//
//	server:
//	  port: 8080
//	  database_url: ${DATABASE_URL:-}
//	  csrf_ttl: 1h
//	  letters:
//	    - number: L-100
//	      status: Pending
//	    - number: L-200
//	      status: Verified
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPagePath          = "/letter_status"
	defaultPollInterval      = 30 * time.Second
	defaultHighlightDuration = 3 * time.Second
	defaultRequestTimeout    = 10 * time.Second
	defaultPort              = 8080
	defaultCSRFTTL           = time.Hour
	defaultLetterStatus      = "Pending"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental hammering of the status endpoint.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for lettersync.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the page title. Defaults to "Letters" at render time if not set.
	Title string `yaml:"title"`

	// BaseURL is the origin of the letter-status server, e.g.
	// "https://letters.example.com". Supports environment variable
	// substitution. Defaults to http://localhost:<server.port>.
	BaseURL string `yaml:"base_url"`

	// PagePath is the path of the page to keep in sync. Defaults to
	// "/letter_status".
	PagePath string `yaml:"page_path"`

	// PollInterval is the time between sync cycles. Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// HighlightDuration is how long a changed row stays highlighted.
	// Defaults to 3s.
	HighlightDuration Duration `yaml:"highlight_duration"`

	// RequestTimeout bounds each status request. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// SingleFlight skips a tick while the previous cycle is still running.
	// Defaults to true.
	SingleFlight *bool `yaml:"single_flight"`

	// Server configures `lettersync serve`.
	Server ServerConfig `yaml:"server"`
}

// ServerConfig configures the reference letter-status server.
type ServerConfig struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// DatabaseURL is a PostgreSQL connection URL. Empty keeps letters in
	// memory. Supports environment variable substitution.
	DatabaseURL string `yaml:"database_url"`

	// CSRFTTL is how long an issued page token stays valid. Defaults to 1h.
	CSRFTTL Duration `yaml:"csrf_ttl"`

	// Letters are seeded into the store at startup. Letters that already
	// exist keep their stored status.
	Letters []LetterConfig `yaml:"letters"`
}

// LetterConfig is one seeded letter.
type LetterConfig struct {
	// Number is the letter number. Required and unique.
	Number string `yaml:"number"`

	// Status is the initial status. Defaults to "Pending".
	Status string `yaml:"status"`
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
// Environment variables are expanded in base_url and server.database_url.
// Defaults are applied to every unset key.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.PagePath == "" {
		c.PagePath = defaultPagePath
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.HighlightDuration == 0 {
		c.HighlightDuration = Duration(defaultHighlightDuration)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if c.SingleFlight == nil {
		enabled := true
		c.SingleFlight = &enabled
	}
	if c.Server.CSRFTTL == 0 {
		c.Server.CSRFTTL = Duration(defaultCSRFTTL)
	}
	for i := range c.Server.Letters {
		if c.Server.Letters[i].Status == "" {
			c.Server.Letters[i].Status = defaultLetterStatus
		}
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	// the default base_url is built from the port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	expanded, err := expandEnvVars(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	c.BaseURL = strings.TrimRight(expanded, "/")

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("base_url must include a host")
	}

	if !strings.HasPrefix(c.PagePath, "/") {
		return fmt.Errorf("page_path must start with /, got %q", c.PagePath)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.HighlightDuration.Duration() < 0 {
		return fmt.Errorf("highlight_duration cannot be negative, got %s", c.HighlightDuration.Duration())
	}
	if c.RequestTimeout.Duration() < time.Second {
		return fmt.Errorf("request_timeout must be at least 1s, got %s", c.RequestTimeout.Duration())
	}

	dbURL, err := expandEnvVars(c.Server.DatabaseURL)
	if err != nil {
		return fmt.Errorf("server.database_url: %w", err)
	}
	c.Server.DatabaseURL = dbURL

	if c.Server.CSRFTTL.Duration() < time.Second {
		return fmt.Errorf("server.csrf_ttl must be at least 1s, got %s", c.Server.CSRFTTL.Duration())
	}

	seen := make(map[string]struct{}, len(c.Server.Letters))
	for i, l := range c.Server.Letters {
		if l.Number == "" {
			return fmt.Errorf("server.letters[%d]: number is required", i)
		}
		if _, exists := seen[l.Number]; exists {
			return fmt.Errorf("server.letters[%d]: duplicate number %q", i, l.Number)
		}
		seen[l.Number] = struct{}{}
	}

	return nil
}

// PageURL returns the absolute URL of the synced page.
func (c *Config) PageURL() string {
	return c.BaseURL + c.PagePath
}

// SingleFlightEnabled reports the effective single_flight setting.
func (c *Config) SingleFlightEnabled() bool {
	return c.SingleFlight == nil || *c.SingleFlight
}
