/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user scope,
// merged over defaults, with environment variables as read-only overrides.
// The mirror DSN is a secret and lives in the OS keyring, never in the file.
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

	"gradebook/internal/log"

	"gopkg.in/yaml.v3"
)

// StorageConfig locates the grade store file.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	FileName string `yaml:"file_name"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Source     bool   `yaml:"source"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MirrorConfig controls the optional PostgreSQL mirror. The DSN is kept in the keyring.
type MirrorConfig struct {
	Enabled   bool `yaml:"enabled"`
	TimeoutMs int  `yaml:"timeout_ms"`
}

// AppConfig is the user-editable configuration.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
	Mirror        MirrorConfig  `yaml:"mirror"`
}

// Env var names used as overrides.
const (
	EnvConfigFile    = "GB_CONFIG"
	EnvDataDir       = "GB_DATA_DIR"
	EnvDBFile        = "GB_DB_FILE"
	EnvMirrorEnabled = "GB_MIRROR_ENABLED"
	EnvMirrorDSN     = "GB_MIRROR_DSN"
)

// Keyring service and key for the mirror DSN.
const (
	keyringService = "Gradebook"
	keyringDSN     = "mirror_dsn"
)

const defaultFileName = "gradebook.sqlite"

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Storage:       StorageConfig{DataDir: defaultDataDir(), FileName: defaultFileName},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Mirror:        MirrorConfig{Enabled: false, TimeoutMs: 10000},
	}
}

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("LocalAppData"); base != "" {
			return filepath.Join(base, "Gradebook")
		}
		return filepath.Join(home, "AppData", "Local", "Gradebook")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Gradebook")
	default:
		if base := os.Getenv("XDG_DATA_HOME"); base != "" {
			return filepath.Join(base, "gradebook")
		}
		return filepath.Join(home, ".local", "share", "gradebook")
	}
}

// ConfigPath returns the per-user config file path. GB_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "gradebook", "config.yaml"), nil
}

// Load reads the config file (if present), applies defaults and environment
// overrides, and returns the mirror DSN from GB_MIRROR_DSN or the keyring.
// A missing file is not an error; a malformed one is.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", err
	}
	applyEnvOverrides(&cfg)

	dsn := strings.TrimSpace(os.Getenv(EnvMirrorDSN))
	if dsn == "" {
		dsn, _ = tokenStore.Get(keyringService, keyringDSN)
	}
	return cfg, dsn, nil
}

// Save writes the config YAML and stores dsn in the keyring when non-empty.
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
		if err := tokenStore.Set(keyringService, keyringDSN, dsn); err != nil {
			return fmt.Errorf("store mirror dsn: %w", err)
		}
	}
	return nil
}

// ForgetMirrorDSN removes the mirror DSN from the keyring.
func ForgetMirrorDSN() error {
	return tokenStore.Delete(keyringService, keyringDSN)
}

// DatabasePath joins the data directory and the store file name.
func (c AppConfig) DatabasePath() string {
	name := c.Storage.FileName
	if strings.TrimSpace(name) == "" {
		name = defaultFileName
	}
	return filepath.Join(c.Storage.DataDir, name)
}

// LogOptions converts the logging section for log.Init.
func (c AppConfig) LogOptions() log.Options {
	return log.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		AddSource:  c.Logging.Source,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}

// Timeout returns the mirror timeout, falling back to the default.
func (m MirrorConfig) Timeout() time.Duration {
	if m.TimeoutMs <= 0 {
		return time.Duration(Defaults().Mirror.TimeoutMs) * time.Millisecond
	}
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.Storage.DataDir); v != "" {
		dst.Storage.DataDir = v
	}
	if v := strings.TrimSpace(src.Storage.FileName); v != "" {
		dst.Storage.FileName = v
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	// booleans: copy directly from the file so user preferences persist
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
	if src.Logging.MaxSizeMB > 0 {
		dst.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		dst.Logging.MaxBackups = src.Logging.MaxBackups
	}
	dst.Mirror.Enabled = src.Mirror.Enabled
	if src.Mirror.TimeoutMs != 0 {
		dst.Mirror.TimeoutMs = src.Mirror.TimeoutMs
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBFile)); v != "" {
		cfg.Storage.FileName = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMirrorEnabled)); v != "" {
		cfg.Mirror.Enabled = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(log.EnvLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(log.EnvFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(log.EnvSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(log.EnvFile)); v != "" {
		cfg.Logging.File = v
	}
}

func truthy(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	lv := strings.ToLower(v)
	return lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"storage.data_dir":  EnvDataDir,
		"storage.file_name": EnvDBFile,
		"mirror.enabled":    EnvMirrorEnabled,
		"mirror.dsn":        EnvMirrorDSN,
		"logging.level":     log.EnvLevel,
		"logging.format":    log.EnvFormat,
		"logging.source":    log.EnvSource,
		"logging.file":      log.EnvFile,
	}
	if env, ok := names[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}
