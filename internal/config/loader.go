package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves fields unset.
const (
	DefaultListenAddr        = ":1337"
	DefaultLogLevel          = LogInfo
	DefaultLang              = "en"
	DefaultClassifierURL     = "http://127.0.0.1:1341"
	DefaultTokenizerAddr     = "127.0.0.1:1342"
	DefaultPhoneticThreshold = 0.82
	DefaultStartTimeout      = 30 * time.Second
)

// Load reads, parses and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses and validates a YAML config from r. Unknown fields
// are rejected so typos surface as errors rather than silently ignored keys.
func LoadFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file is a valid config: everything defaulted.
			cfg = Config{}
		} else {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Lang.Default == "" {
		c.Lang.Default = DefaultLang
	}
	if c.Classifier.URL == "" {
		c.Classifier.URL = DefaultClassifierURL
	}
	if c.Tokenizer.Addr == "" {
		c.Tokenizer.Addr = DefaultTokenizerAddr
	}
	if c.Fallback.PhoneticThreshold == 0 {
		c.Fallback.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if c.Tokenizer.StartTimeout == 0 {
		c.Tokenizer.StartTimeout = DefaultStartTimeout
	}
}

// Validate checks the config for hard errors and warns about soft issues.
// Hard errors are joined so the operator sees all of them at once.
func (c *Config) Validate() error {
	var errs []error

	if !c.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level: unknown level %q", c.Server.LogLevel))
	}
	if c.Server.TLS != nil {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls: cert_file and key_file must both be set"))
		}
	}
	if len(c.Lang.Supported) > 0 && !slices.Contains(c.Lang.Supported, c.Lang.Default) {
		errs = append(errs, fmt.Errorf("lang.default: %q is not in lang.supported", c.Lang.Default))
	}
	if c.Fallback.PhoneticThreshold < 0 || c.Fallback.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("fallback.phonetic_threshold: %v is outside [0, 1]", c.Fallback.PhoneticThreshold))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint: required when telemetry is enabled"))
	}

	// Soft issues: the core can start without these, but most turns will fail.
	if c.Paths.Models == "" {
		slog.Warn("config: paths.models is empty, model loading will be skipped")
	}
	if c.Paths.Skills == "" {
		slog.Warn("config: paths.skills is empty, skill configs will not resolve")
	}
	if c.Tokenizer.Command == "" {
		slog.Warn("config: tokenizer.command is empty, spaCy entity merging disabled")
	}
	if c.Brain.Interpreter == "" {
		slog.Warn("config: brain.interpreter is empty, skill actions cannot execute")
	}

	return errors.Join(errs...)
}
