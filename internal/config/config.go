/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"gorenpy/internal/script"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type ParserConfig struct {
	TabWidth         int      `yaml:"tab_width"`
	AllowMixedIndent bool     `yaml:"allow_mixed_indent"`
	Extensions       []string `yaml:"extensions"`
}

type IndexConfig struct {
	Dir     string `yaml:"dir"`     // project-relative directory holding index.sqlite
	Workers int    `yaml:"workers"` // parallel parses; 0 means GOMAXPROCS
}

type BackendConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
	// The Postgres DSN is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	TelemetryURL   string `yaml:"telemetry_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Parser        ParserConfig  `yaml:"parser"`
	Index         IndexConfig   `yaml:"index"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Parser:        ParserConfig{TabWidth: script.DefaultTabWidth, Extensions: []string{".rpy"}},
		Index:         IndexConfig{Dir: ".gorenpy", Workers: 0},
		General:       GeneralConfig{},
		Backend:       BackendConfig{TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "GRP_CONFIG"
	EnvTabWidth         = "GRP_TAB_WIDTH"
	EnvAllowMixedIndent = "GRP_ALLOW_MIXED_INDENT"
	EnvIndexWorkers     = "GRP_INDEX_WORKERS"
	EnvBackendDSN       = "GRP_PG_DSN"
	EnvBackendTimeoutMs = "GRP_BACKEND_TIMEOUT_MS"
	EnvTelemetryOptIn   = "GRP_TELEMETRY_OPT_IN"
	EnvTelemetryURL     = "GRP_TELEMETRY_URL"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GRP_LOG_LEVEL"
	EnvLogFormat = "GRP_LOG_FORMAT"
	EnvLogSource = "GRP_LOG_SOURCE"
	EnvLogFile   = "GRP_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "gorenpy"
	keyringDSN     = "postgres_dsn"
)

// SecretStore abstracts the keyring so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secretStore SecretStore = osKeyring{}

// ConfigPath returns the per-user config file path. GRP_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "gorenpy")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "gorenpy")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "gorenpy")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "gorenpy")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The Postgres DSN comes from GRP_PG_DSN or, failing that, the keyring; it is returned separately.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error;
// a malformed one is.
func LoadFrom(path string) (AppConfig, string, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	dsn := strings.TrimSpace(os.Getenv(EnvBackendDSN))
	if dsn == "" {
		dsn, _ = secretStore.Get(keyringService, keyringDSN)
	}
	return cfg, dsn, nil
}

// Save writes the user config YAML and persists the DSN into the OS keyring (if non-empty).
func Save(cfg AppConfig, dsn string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if dsn != "" {
		if err := secretStore.Set(keyringService, keyringDSN, dsn); err != nil {
			return fmt.Errorf("store dsn in keyring: %w", err)
		}
	}
	return nil
}

// ForgetDSN removes the stored DSN from the keyring. A missing entry is not an error.
func ForgetDSN() error {
	if err := secretStore.Delete(keyringService, keyringDSN); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Parser.TabWidth > 0 {
		dst.Parser.TabWidth = src.Parser.TabWidth
	}
	dst.Parser.AllowMixedIndent = src.Parser.AllowMixedIndent
	if len(src.Parser.Extensions) > 0 {
		dst.Parser.Extensions = normalizeExts(src.Parser.Extensions)
	}
	if strings.TrimSpace(src.Index.Dir) != "" {
		dst.Index.Dir = strings.TrimSpace(src.Index.Dir)
	}
	if src.Index.Workers > 0 {
		dst.Index.Workers = src.Index.Workers
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.TelemetryURL) != "" {
		dst.General.TelemetryURL = strings.TrimSpace(src.General.TelemetryURL)
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTabWidth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Parser.TabWidth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAllowMixedIndent)); v != "" {
		cfg.Parser.AllowMixedIndent = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvIndexWorkers)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Index.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.General.TelemetryURL = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env := map[string]string{
		"parser.tab_width":          EnvTabWidth,
		"parser.allow_mixed_indent": EnvAllowMixedIndent,
		"index.workers":             EnvIndexWorkers,
		"backend.timeout_ms":        EnvBackendTimeoutMs,
		"general.telemetry_opt_in":  EnvTelemetryOptIn,
		"general.telemetry_url":     EnvTelemetryURL,
		"logging.level":             EnvLogLevel,
		"logging.format":            EnvLogFormat,
		"logging.source":            EnvLogSource,
		"logging.file":              EnvLogFile,
	}[key]
	if env != "" && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// ScriptOptions converts the parser section into scanner options.
func (p ParserConfig) ScriptOptions() []script.Option {
	return []script.Option{script.WithTabWidth(p.TabWidth), script.WithMixedIndent(p.AllowMixedIndent)}
}

// HasExt reports whether path has one of the configured script extensions.
func (p ParserConfig) HasExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Timeout returns the backend timeout, falling back to the default for non-positive values.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
