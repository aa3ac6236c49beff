// Package settings loads the immutable options record the session is
// constructed with. Values come from defaults, then an optional YAML file,
// then environment overrides, in that order.
package settings

import (
	"fmt"
	"os"
	"time"

	goeen_log "github.com/eencloud/goeen/log"
	"gopkg.in/yaml.v3"

	"pos-terminal-session/internal/terminal"
)

type Options struct {
	BaseURL      string `yaml:"base_url"`
	TokenPath    string `yaml:"token_path"`
	LocationPath string `yaml:"location_path"`
	IntentPath   string `yaml:"intent_path"`
	Currency     string `yaml:"currency"`

	// Two deliberately separate budgets: the HTTP timeout bounds every
	// backend call and must stay shorter than the collection timeout, or a
	// stalled backend eats the cardholder's countdown.
	HTTPTimeoutMS    int `yaml:"http_timeout_ms"`
	CollectTimeoutMS int `yaml:"collect_timeout_ms"`

	ListenAddr     string `yaml:"listen_addr"`
	DataDir        string `yaml:"data_dir"`
	MaxStoreSizeGB int    `yaml:"max_store_size_gb"`

	ReaderAdapter  string `yaml:"reader_adapter"`
	SimReaderCount int    `yaml:"sim_reader_count"`
}

func Defaults() Options {
	return Options{
		TokenPath:        "/connection-token",
		LocationPath:     "/location",
		IntentPath:       "/payment-intent",
		Currency:         "usd",
		HTTPTimeoutMS:    10000,
		CollectTimeoutMS: 60000,
		ListenAddr:       ":33480",
		DataDir:          "data",
		MaxStoreSizeGB:   2,
		ReaderAdapter:    "simulated",
		SimReaderCount:   2,
	}
}

// Load reads the YAML file at path (missing file is fine; defaults apply)
// and applies environment overrides.
func Load(path string, logger *goeen_log.Logger) (Options, error) {
	opts := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return opts, fmt.Errorf("read config %s: %w", path, err)
			}
			logger.Infof("No config file at %s, using defaults", path)
		} else {
			if err := yaml.Unmarshal(raw, &opts); err != nil {
				return opts, fmt.Errorf("parse config %s: %w", path, err)
			}
			logger.Infof("Loaded configuration from %s", path)
		}
	}

	if port := os.Getenv("POS_SERVICE_PORT"); port != "" {
		opts.ListenAddr = ":" + port
	}
	if base := os.Getenv("POS_BACKEND_URL"); base != "" {
		opts.BaseURL = base
	}
	if adapter := os.Getenv("POS_READER_ADAPTER"); adapter != "" {
		opts.ReaderAdapter = adapter
	}

	return opts, nil
}

// Validate checks the invariants the session depends on. Every violation
// maps to CONFIG_INVALID.
func (o Options) Validate() *terminal.TerminalError {
	if o.BaseURL == "" {
		return terminal.NewError(terminal.CodeConfigInvalid, "base_url is required")
	}
	if o.Currency == "" {
		return terminal.NewError(terminal.CodeConfigInvalid, "currency is required")
	}
	if o.HTTPTimeoutMS <= 0 {
		return terminal.NewError(terminal.CodeConfigInvalid, "http_timeout_ms must be positive")
	}
	if o.CollectTimeoutMS <= 0 {
		return terminal.NewError(terminal.CodeConfigInvalid, "collect_timeout_ms must be positive")
	}
	if o.HTTPTimeoutMS >= o.CollectTimeoutMS {
		return terminal.NewError(terminal.CodeConfigInvalid, "http_timeout_ms must be shorter than collect_timeout_ms")
	}
	if o.ReaderAdapter == "" {
		return terminal.NewError(terminal.CodeConfigInvalid, "reader_adapter is required")
	}
	return nil
}

func (o Options) HTTPTimeout() time.Duration {
	return time.Duration(o.HTTPTimeoutMS) * time.Millisecond
}

func (o Options) CollectTimeout() time.Duration {
	return time.Duration(o.CollectTimeoutMS) * time.Millisecond
}
