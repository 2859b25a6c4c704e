// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/base32"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/util"
)

// CurrentVersion is the config schema version written by SaveTOML.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete concierge configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Server holds the HTTP listener settings.
	Server ServerConfig `toml:"server" json:"server"`

	// Provider selects and configures the hosted completion API.
	Provider ProviderConfig `toml:"provider" json:"provider"`

	// Models is the fallback list, tried in ascending priority.
	Models []model.ModelDescriptor `toml:"models" json:"models"`

	Retry        RetryConfig        `toml:"retry" json:"retry"`
	Orchestrator OrchestratorConfig `toml:"orchestrator" json:"orchestrator"`
	Intent       IntentConfig       `toml:"intent" json:"intent"`
	Prompt       PromptConfig       `toml:"prompt" json:"prompt"`
	Storage      StorageConfig      `toml:"storage" json:"storage"`
	Catalog      CatalogConfig      `toml:"catalog" json:"catalog"`
	Admin        AdminConfig        `toml:"admin" json:"admin"`
	Site         SiteConfig         `toml:"site" json:"site"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`

	// Environment is "development", "production" or "test". Error details
	// are hidden from clients in production.
	Environment string `toml:"environment" json:"environment"`

	// RequestTimeoutSecs bounds one /api/chat request end to end.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`

	CORSOrigins    []string `toml:"cors_origins" json:"cors_origins"`
	TrustedProxies []string `toml:"trusted_proxies" json:"trusted_proxies"`

	// RateLimit is requests per minute per client IP (0 disables).
	RateLimit int `toml:"rate_limit" json:"rate_limit"`
	RateBurst int `toml:"rate_burst" json:"rate_burst"`

	// AutocertDomains enables ACME TLS for the listed hosts.
	AutocertDomains  []string `toml:"autocert_domains" json:"autocert_domains"`
	AutocertCacheDir string   `toml:"autocert_cache_dir" json:"autocert_cache_dir"`
}

// ProviderConfig contains the completion provider settings.
type ProviderConfig struct {
	// Kind is "http" (hand-rolled JSON client) or "sdk" (openai-go).
	Kind        string `toml:"kind" json:"kind"`
	APIKey      string `toml:"api_key" json:"api_key"`
	BaseURL     string `toml:"base_url" json:"base_url"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
}

// RetryConfig controls rate-limit retries per model.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`
	BaseDelayMs int `toml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMs  int `toml:"max_delay_ms" json:"max_delay_ms"`
}

// OrchestratorConfig contains post-processing settings.
type OrchestratorConfig struct {
	// NavigationMode is "override" (replace the reply) or "append".
	NavigationMode string `toml:"navigation_mode" json:"navigation_mode"`
}

// IntentConfig selects the intent classifier.
type IntentConfig struct {
	// Mode is "keyword", "model" or "off".
	Mode      string `toml:"mode" json:"mode"`
	TimeoutMs int    `toml:"timeout_ms" json:"timeout_ms"`
	// Model names the descriptor used in "model" mode. Empty means the
	// lowest-priority configured model.
	Model string `toml:"model" json:"model"`
}

// PromptConfig contains prompt assembly settings.
type PromptConfig struct {
	MaxHistory int `toml:"max_history" json:"max_history"`
}

// StorageConfig contains the SQLite store settings. An empty path disables
// persistence.
type StorageConfig struct {
	Path string `toml:"path" json:"path"`
}

// CatalogConfig points at an optional catalog override file.
type CatalogConfig struct {
	Path  string `toml:"path" json:"path"`
	Watch bool   `toml:"watch" json:"watch"`
}

// AdminConfig protects the admin endpoints.
type AdminConfig struct {
	Token      string `toml:"token" json:"token"`
	TOTPSecret string `toml:"totp_secret" json:"totp_secret"`
}

// SiteConfig describes the public site the service backs.
type SiteConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
}

// RequestTimeout returns the per-request deadline.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether error details must be hidden.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// Timeout returns the per-round-trip provider timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// BaseDelay returns the first backoff delay.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// Timeout returns the classifier deadline.
func (i IntentConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutMs) * time.Millisecond
}

// ModelList returns the configured models as a model.Models.
func (c *Config) ModelList() model.Models {
	return model.Models(c.Models)
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,

		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			Environment:        "development",
			RequestTimeoutSecs: 30,
			CORSOrigins:        []string{"*"},
			RateLimit:          30,
			RateBurst:          10,
			AutocertCacheDir:   "autocert-cache",
		},

		Provider: ProviderConfig{
			Kind:        "http",
			BaseURL:     cloud.DefaultBaseURL,
			TimeoutSecs: 60,
		},

		Models: model.DefaultModels(),

		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 500,
			MaxDelayMs:  10000,
		},

		Orchestrator: OrchestratorConfig{
			NavigationMode: "override",
		},

		Intent: IntentConfig{
			Mode:      "keyword",
			TimeoutMs: 5000,
		},

		Prompt: PromptConfig{
			MaxHistory: 20,
		},

		Site: SiteConfig{
			BaseURL: "https://capitalcode.es",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the concierge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".concierge"), nil
}

// ConfigPathTOML returns the path to the default TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolvePath picks the config file: the explicit path, then
// CONCIERGE_CONFIG, then ~/.concierge/config.toml.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("CONCIERGE_CONFIG"); env != "" {
		return env
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return ""
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path (resolved with ResolvePath) if it
// exists, otherwise starts from defaults. Environment overrides are applied
// last, then defaults are filled and the result validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	path = ResolvePath(path)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values. A [[models]] list in the file replaces the default
// list entirely.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return DecodeTOML(cfg, data)
}

// DecodeTOML decodes TOML bytes over cfg and rejects unknown keys.
func DecodeTOML(cfg *Config, data []byte) error {
	models := cfg.Models
	cfg.Models = nil

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if !md.IsDefined("models") {
		cfg.Models = models
	}
	return nil
}

// Migrate upgrades older config files in place.
func (c *Config) Migrate() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	c.Provider.Kind = strings.ToLower(strings.TrimSpace(c.Provider.Kind))
	c.Intent.Mode = strings.ToLower(strings.TrimSpace(c.Intent.Mode))
	c.Orchestrator.NavigationMode = strings.ToLower(strings.TrimSpace(c.Orchestrator.NavigationMode))
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
}

// SetDefaults fills any zero-valued settings from Default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.Environment == "" {
		c.Server.Environment = d.Server.Environment
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Server.AutocertCacheDir == "" {
		c.Server.AutocertCacheDir = d.Server.AutocertCacheDir
	}

	// Provider
	if c.Provider.Kind == "" {
		c.Provider.Kind = d.Provider.Kind
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = d.Provider.BaseURL
	}
	if c.Provider.TimeoutSecs == 0 {
		c.Provider.TimeoutSecs = d.Provider.TimeoutSecs
	}

	if len(c.Models) == 0 {
		c.Models = d.Models
	}

	// Retry
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = d.Retry.BaseDelayMs
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = d.Retry.MaxDelayMs
	}

	if c.Orchestrator.NavigationMode == "" {
		c.Orchestrator.NavigationMode = d.Orchestrator.NavigationMode
	}

	// Intent
	if c.Intent.Mode == "" {
		c.Intent.Mode = d.Intent.Mode
	}
	if c.Intent.TimeoutMs == 0 {
		c.Intent.TimeoutMs = d.Intent.TimeoutMs
	}

	if c.Prompt.MaxHistory == 0 {
		c.Prompt.MaxHistory = d.Prompt.MaxHistory
	}
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = d.Site.BaseURL
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to path atomically.
// SECURITY: Config files hold API keys and are written 0600.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# concierge configuration file\n")
	buf.WriteString("# Environment variables (GROQ_API_KEY, PORT, CONCIERGE_*) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error concerns field.
func (e ValidateErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate checks the configuration and returns ValidateErrors when any
// setting is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Server
	// ==========================================================================

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "port %d out of range 1-65535", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production", "test":
	default:
		add("server.environment", "invalid environment '%s', must be one of: development, production, test", c.Server.Environment)
	}
	if c.Server.RequestTimeoutSecs < 1 || c.Server.RequestTimeoutSecs > 300 {
		add("server.request_timeout_secs", "must be between 1 and 300, got %d", c.Server.RequestTimeoutSecs)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 0 {
		add("server.rate_burst", "must not be negative")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if !validProxy(proxy) {
			add("server.trusted_proxies", "invalid IP or CIDR '%s'", proxy)
		}
	}
	for _, domain := range c.Server.AutocertDomains {
		if strings.TrimSpace(domain) == "" || strings.ContainsAny(domain, "/: ") {
			add("server.autocert_domains", "invalid host name '%s'", domain)
		}
	}

	// ==========================================================================
	// Provider
	// ==========================================================================

	switch c.Provider.Kind {
	case "http", "sdk":
	default:
		add("provider.kind", "invalid kind '%s', must be one of: http, sdk", c.Provider.Kind)
	}
	if c.Provider.APIKey != "" && !cloud.ValidKey(c.Provider.APIKey) {
		add("provider.api_key", "key must start with '%s'", cloud.KeyPrefix)
	}
	if err := validateURL(c.Provider.BaseURL); err != nil {
		add("provider.base_url", "%v", err)
	}
	if c.Provider.TimeoutSecs < 1 || c.Provider.TimeoutSecs > 600 {
		add("provider.timeout_secs", "must be between 1 and 600, got %d", c.Provider.TimeoutSecs)
	}

	// ==========================================================================
	// Models and retry
	// ==========================================================================

	if err := c.ModelList().Validate(); err != nil {
		add("models", "%v", err)
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		add("retry.max_attempts", "must be between 1 and 10, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMs < 1 {
		add("retry.base_delay_ms", "must be positive")
	}
	if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		add("retry.max_delay_ms", "must be at least base_delay_ms (%d)", c.Retry.BaseDelayMs)
	}

	switch c.Orchestrator.NavigationMode {
	case "override", "append":
	default:
		add("orchestrator.navigation_mode", "invalid mode '%s', must be one of: override, append", c.Orchestrator.NavigationMode)
	}

	// ==========================================================================
	// Intent and prompt
	// ==========================================================================

	switch c.Intent.Mode {
	case "keyword", "model", "off":
	default:
		add("intent.mode", "invalid mode '%s', must be one of: keyword, model, off", c.Intent.Mode)
	}
	if c.Intent.TimeoutMs < 1 {
		add("intent.timeout_ms", "must be positive")
	}
	if c.Intent.Model != "" {
		if _, ok := c.ModelList().Lookup(c.Intent.Model); !ok {
			add("intent.model", "model '%s' is not in the models list", c.Intent.Model)
		}
	}
	if c.Prompt.MaxHistory < 1 || c.Prompt.MaxHistory > 200 {
		add("prompt.max_history", "must be between 1 and 200, got %d", c.Prompt.MaxHistory)
	}

	// ==========================================================================
	// Admin and site
	// ==========================================================================

	if c.Admin.Token != "" && len(c.Admin.Token) < 16 {
		add("admin.token", "must be at least 16 characters")
	}
	if c.Admin.TOTPSecret != "" {
		if c.Admin.Token == "" {
			add("admin.totp_secret", "requires admin.token")
		}
		secret := strings.ToUpper(strings.TrimRight(c.Admin.TOTPSecret, "="))
		if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret); err != nil {
			add("admin.totp_secret", "must be base32 encoded")
		}
	}
	if err := validateURL(c.Site.BaseURL); err != nil {
		add("site.base_url", "%v", err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - GROQ_API_KEY / CONCIERGE_API_KEY: provider.api_key (the latter wins)
//   - CONCIERGE_BASE_URL: provider.base_url
//   - CONCIERGE_PROVIDER: provider.kind
//   - PORT / CONCIERGE_PORT: server.port (the latter wins)
//   - CONCIERGE_ENV: server.environment
//   - CONCIERGE_DB: storage.path
//   - CONCIERGE_CATALOG: catalog.path
//   - CONCIERGE_ADMIN_TOKEN: admin.token
//   - CONCIERGE_ADMIN_TOTP: admin.totp_secret
//   - CONCIERGE_NAVIGATION_MODE: orchestrator.navigation_mode
//   - CONCIERGE_INTENT_MODE: intent.mode
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.Provider.APIKey = strings.TrimSpace(key)
	}
	if key := os.Getenv("CONCIERGE_API_KEY"); key != "" {
		c.Provider.APIKey = strings.TrimSpace(key)
	}
	if baseURL := os.Getenv("CONCIERGE_BASE_URL"); baseURL != "" {
		c.Provider.BaseURL = baseURL
	}
	if kind := os.Getenv("CONCIERGE_PROVIDER"); kind != "" {
		c.Provider.Kind = kind
	}

	for _, name := range []string{"PORT", "CONCIERGE_PORT"} {
		if raw := os.Getenv(name); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: not a number\n", name, raw)
				continue
			}
			c.Server.Port = port
		}
	}

	if env := os.Getenv("CONCIERGE_ENV"); env != "" {
		c.Server.Environment = env
	}
	if db := os.Getenv("CONCIERGE_DB"); db != "" {
		c.Storage.Path = db
	}
	if catalogPath := os.Getenv("CONCIERGE_CATALOG"); catalogPath != "" {
		c.Catalog.Path = catalogPath
	}
	if token := os.Getenv("CONCIERGE_ADMIN_TOKEN"); token != "" {
		c.Admin.Token = token
	}
	if secret := os.Getenv("CONCIERGE_ADMIN_TOTP"); secret != "" {
		c.Admin.TOTPSecret = secret
	}
	if mode := os.Getenv("CONCIERGE_NAVIGATION_MODE"); mode != "" {
		c.Orchestrator.NavigationMode = mode
	}
	if mode := os.Getenv("CONCIERGE_INTENT_MODE"); mode != "" {
		c.Intent.Mode = mode
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using its TOML key (e.g. "retry.max_attempts").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using its TOML key. String values are
// converted to the field's type; comma-separated strings fill string lists.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by TOML tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns every scalar configuration key in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := tomlName(f)
			if name == "" || name == "-" {
				continue
			}
			if prefix != "" {
				name = prefix + "." + name
			}
			switch {
			case f.Type.Kind() == reflect.Struct:
				walk(f.Type, name)
			case f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.Struct:
				// Tables like [[models]] are edited in the file, not by key.
			default:
				keys = append(keys, name)
			}
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Models = append([]model.ModelDescriptor(nil), c.Models...)
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	clone.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	clone.Server.AutocertDomains = append([]string(nil), c.Server.AutocertDomains...)
	return &clone
}

// Redacted returns a copy with every secret replaced.
// SECURITY: Secrets must never reach logs or terminal output.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Provider.APIKey != "" {
		safe.Provider.APIKey = "[REDACTED " + cloud.KeyFingerprint(c.Provider.APIKey) + "]"
	}
	if safe.Admin.Token != "" {
		safe.Admin.Token = "[REDACTED]"
	}
	if safe.Admin.TOTPSecret != "" {
		safe.Admin.TOTPSecret = "[REDACTED]"
	}
	return safe
}

// String renders the config as TOML with secrets redacted.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Invalid files fall back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
