package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// FileName is the canonical name of the configuration file.
	FileName = "publicresolvers.json"
	// systemConfigPath is the location checked last when resolving the config.
	systemConfigPath = "/etc/" + FileName
)

// Defaults for every optional setting.
const (
	DefaultMaxRetries            = 3
	DefaultRetryDelaySeconds     = 30
	DefaultRequestTimeoutSeconds = 60
	DefaultPerPage               = 1000
	DefaultRateLimitDelaySeconds = 1.0
	DefaultHighUptimeThreshold   = 99.0
	DefaultSourceURL             = "https://dnsdirectory.com"
	DefaultUpdateFrequency       = "twice daily"
	DefaultServeAddress          = "127.0.0.1:8080"
	DefaultCommitAuthorName      = "publicresolvers"
	DefaultCommitAuthorEmail     = "publicresolvers@localhost"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIEndpoint         = "DNS_API_ENDPOINT"
	EnvMaxRetries          = "DNS_MAX_RETRIES"
	EnvRetryDelay          = "DNS_RETRY_DELAY"
	EnvRequestTimeout      = "DNS_REQUEST_TIMEOUT"
	EnvPerPage             = "DNS_PER_PAGE"
	EnvRateLimitDelay      = "DNS_RATE_LIMIT_DELAY"
	EnvHighUptimeThreshold = "DNS_HIGH_UPTIME_THRESHOLD"
	EnvOutputDir           = "DNS_OUTPUT_DIR"
	EnvLogLevel            = "DNS_LOG_LEVEL"
)

var (
	// ErrMissingEndpoint is returned by Validate when no API endpoint is configured.
	ErrMissingEndpoint = errors.New("config: " + EnvAPIEndpoint + " is required")
	// ErrInvalid wraps every other validation failure.
	ErrInvalid = errors.New("config: invalid value")
)

// LogRotationMode is the log rotation strategy: "none", "size", or "time".
type LogRotationMode string

const (
	LogRotationNone LogRotationMode = "none"
	LogRotationSize LogRotationMode = "size"
	LogRotationTime LogRotationMode = "time"
)

// LogConfig holds logging directory, severity, and rotation settings. An
// empty Dir keeps logs on stderr only.
type LogConfig struct {
	Dir            string          `json:"log_dir"`
	Severity       string          `json:"log_severity"`
	Rotation       LogRotationMode `json:"log_rotation"`
	RotationSizeMB int             `json:"log_rotation_size_mb"`
	RotationDays   int             `json:"log_rotation_time_days"`
}

// GitConfig controls the optional local commit of generated artifacts.
type GitConfig struct {
	Commit      bool   `json:"commit"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// Config captures every setting of a generation run.
type Config struct {
	APIEndpoint           string    `json:"api_endpoint"`
	MaxRetries            int       `json:"max_retries"`
	RetryDelaySeconds     int       `json:"retry_delay_seconds"`
	RequestTimeoutSeconds int       `json:"request_timeout_seconds"`
	PerPage               int       `json:"per_page"`
	RateLimitDelaySeconds float64   `json:"rate_limit_delay_seconds"`
	HighUptimeThreshold   float64   `json:"high_uptime_threshold"`
	OutputDir             string    `json:"output_dir"`
	SourceURL             string    `json:"source_url"`
	UpdateFrequency       string    `json:"update_frequency"`
	ServeAddress          string    `json:"serve_address"`
	Git                   GitConfig `json:"git"`
	Log                   LogConfig `json:"log"`
}

// Loaded contains the configuration together with metadata about the source
// file. Path is empty when no file was found and only defaults apply.
type Loaded struct {
	Path    string
	Created bool
	Config  Config
}

// Load resolves the configuration. With an explicit path it behaves like
// LoadFromPath. Otherwise the user and system locations are searched and,
// when neither exists, built-in defaults are returned without writing a file.
func Load(path string) (*Loaded, error) {
	if strings.TrimSpace(path) != "" {
		return LoadFromPath(path)
	}
	for _, candidate := range candidatePaths() {
		cfg, err := Read(candidate)
		if err == nil {
			return &Loaded{Path: candidate, Config: *cfg}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to read %s: %w", candidate, err)
		}
	}
	return &Loaded{Config: *defaultConfig()}, nil
}

// resolveConfigPath returns the config file path. If path is a directory (ends
// with /, exists as dir, or path has no extension), returns path/FileName;
// otherwise returns path as the config file path.
func resolveConfigPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	isDir := strings.HasSuffix(trimmed, string(filepath.Separator))
	path = filepath.Clean(trimmed)
	if trimmed == "" || path == "." {
		return "", fmt.Errorf("config: path is empty")
	}
	if !isDir {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			isDir = true
		} else if !strings.Contains(filepath.Base(path), ".") {
			isDir = true
		}
	}
	if isDir {
		return filepath.Join(path, FileName), nil
	}
	return path, nil
}

// LoadFromPath loads configuration from the given path, or creates a default
// config at that path if the file does not exist. Path may be a directory
// (then config is path/publicresolvers.json) or a file path.
func LoadFromPath(path string) (*Loaded, error) {
	configPath, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Read(configPath)
	if err == nil {
		return &Loaded{Path: configPath, Config: *cfg}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
	}
	if err := Save(configPath, *defaultConfig()); err != nil {
		return nil, err
	}
	return &Loaded{Path: configPath, Created: true, Config: *defaultConfig()}, nil
}

// Read loads and normalises configuration from the specified path without
// searching other locations.
func Read(path string) (*Config, error) {
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the supplied configuration to path.
func Save(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: ensure config directory %s: %w", dir, err)
	}
	cfg.applyDefaults()
	payload, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from the DNS_* environment variables. lookup is
// normally os.LookupEnv. Empty variables are ignored; malformed numbers are
// configuration errors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvAPIEndpoint); ok {
		c.APIEndpoint = v
	}
	if v, ok := get(EnvOutputDir); ok {
		c.OutputDir = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Severity = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvMaxRetries, &c.MaxRetries},
		{EnvRetryDelay, &c.RetryDelaySeconds},
		{EnvRequestTimeout, &c.RequestTimeoutSeconds},
		{EnvPerPage, &c.PerPage},
	}
	for _, it := range ints {
		v, ok := get(it.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: parse %s=%q: %w", it.key, v, err)
		}
		*it.dst = n
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{EnvRateLimitDelay, &c.RateLimitDelaySeconds},
		{EnvHighUptimeThreshold, &c.HighUptimeThreshold},
	}
	for _, it := range floats {
		v, ok := get(it.key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: parse %s=%q: %w", it.key, v, err)
		}
		*it.dst = f
	}
	return nil
}

// Validate reports the first configuration problem, if any. A missing
// endpoint yields ErrMissingEndpoint; everything else wraps ErrInvalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIEndpoint) == "" {
		return ErrMissingEndpoint
	}
	switch {
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: max_retries must be at least 1, got %d", ErrInvalid, c.MaxRetries)
	case c.RetryDelaySeconds < 0:
		return fmt.Errorf("%w: retry_delay_seconds must not be negative, got %d", ErrInvalid, c.RetryDelaySeconds)
	case c.RequestTimeoutSeconds < 1:
		return fmt.Errorf("%w: request_timeout_seconds must be at least 1, got %d", ErrInvalid, c.RequestTimeoutSeconds)
	case c.PerPage < 1:
		return fmt.Errorf("%w: per_page must be at least 1, got %d", ErrInvalid, c.PerPage)
	case c.RateLimitDelaySeconds < 0:
		return fmt.Errorf("%w: rate_limit_delay_seconds must not be negative, got %v", ErrInvalid, c.RateLimitDelaySeconds)
	case c.HighUptimeThreshold < 0 || c.HighUptimeThreshold > 100:
		return fmt.Errorf("%w: high_uptime_threshold must be within 0..100, got %v", ErrInvalid, c.HighUptimeThreshold)
	}
	return nil
}

// RetryDelay is the wait between failed attempts for one page.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// RequestTimeout bounds a single page request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// PageDelay is the wait between successful pages.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.RateLimitDelaySeconds * float64(time.Second))
}

func candidatePaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		paths = append(paths, filepath.Join(dir, "publicresolvers", FileName))
	}
	return append(paths, systemConfigPath)
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config: file %s is empty", path)
	}

	// Keys absent from the file keep their defaults.
	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		MaxRetries:            DefaultMaxRetries,
		RetryDelaySeconds:     DefaultRetryDelaySeconds,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		PerPage:               DefaultPerPage,
		RateLimitDelaySeconds: DefaultRateLimitDelaySeconds,
		HighUptimeThreshold:   DefaultHighUptimeThreshold,
		OutputDir:             ".",
		SourceURL:             DefaultSourceURL,
		UpdateFrequency:       DefaultUpdateFrequency,
		ServeAddress:          DefaultServeAddress,
		Git: GitConfig{
			AuthorName:  DefaultCommitAuthorName,
			AuthorEmail: DefaultCommitAuthorEmail,
		},
		Log: LogConfig{
			Severity:       "info",
			Rotation:       LogRotationSize,
			RotationSizeMB: 100,
			RotationDays:   7,
		},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return *defaultConfig()
}

func (c *Config) applyDefaults() {
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.UpdateFrequency == "" {
		c.UpdateFrequency = DefaultUpdateFrequency
	}
	if c.ServeAddress == "" {
		c.ServeAddress = DefaultServeAddress
	}
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Git.AuthorName == "" {
		c.Git.AuthorName = DefaultCommitAuthorName
	}
	if c.Git.AuthorEmail == "" {
		c.Git.AuthorEmail = DefaultCommitAuthorEmail
	}

	if c.Log.Severity == "" {
		c.Log.Severity = "info"
	}
	if c.Log.Rotation == "" {
		c.Log.Rotation = LogRotationSize
	}
	if c.Log.RotationSizeMB <= 0 {
		c.Log.RotationSizeMB = 100
	}
	if c.Log.RotationDays <= 0 {
		c.Log.RotationDays = 7
	}
}
