// Package config defines the Sennet configuration schema and loading.
package config

import (
	"path/filepath"
	"time"
)

// LogLevel controls logging verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether the log level is one of the known values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration for a Sennet core instance.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Lang       LangConfig       `yaml:"lang"`
	Paths      PathsConfig      `yaml:"paths"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	Brain      BrainConfig      `yaml:"brain"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds the HTTP/WebSocket surface settings.
type ServerConfig struct {
	ListenAddr string     `yaml:"listen_addr"`
	LogLevel   LogLevel   `yaml:"log_level"`
	TLS        *TLSConfig `yaml:"tls,omitempty"`
}

// TLSConfig enables TLS for the server when both files are set.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LangConfig selects the session language. An empty Supported list means
// every locale the models ship with is accepted.
type LangConfig struct {
	Default   string   `yaml:"default"`
	Supported []string `yaml:"supported,omitempty"`
}

// PathsConfig locates the on-disk artifacts Sennet reads at runtime.
type PathsConfig struct {
	Models string `yaml:"models"`
	Data   string `yaml:"data"`
	Skills string `yaml:"skills"`
}

// ModelFile returns the path of a trained model file by kind
// ("main", "global-resolvers" or "skills-resolvers").
func (p PathsConfig) ModelFile(kind string) string {
	return filepath.Join(p.Models, "sennet-"+kind+"-model.nlp")
}

// ClassifierConfig points at the NLP sidecar hosting the three classifier
// models behind HTTP.
type ClassifierConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TokenizerConfig configures the sidecar tokenizer process.
type TokenizerConfig struct {
	Command      string        `yaml:"command"`
	Addr         string        `yaml:"addr,omitempty"`
	StartTimeout time.Duration `yaml:"start_timeout,omitempty"`
}

// BrainConfig configures the skill executor.
type BrainConfig struct {
	Interpreter string `yaml:"interpreter"`
}

// FallbackConfig tunes phonetic fallback matching.
type FallbackConfig struct {
	PhoneticThreshold float64 `yaml:"phonetic_threshold,omitempty"`
	Table             string  `yaml:"table,omitempty"`
}

// TelemetryConfig controls anonymous usage reporting.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint,omitempty"`
}
