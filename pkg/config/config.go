package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigurationError wraps any problem found while loading or validating
// configuration. Callers treat it as fatal at startup, per spec.md §7.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %s", e.Message)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// OpcConfig controls subscription source selection.
type OpcConfig struct {
	// UseSimulator selects the synthetic subscription source instead of
	// a real OPC UA session. The real client is out of scope (spec.md §1);
	// this is the only SessionFactory shipped.
	UseSimulator bool `yaml:"useSimulator"`

	// SamplingIntervalSeconds is the simulator's per-tag emission period.
	SamplingIntervalSeconds float64 `yaml:"samplingIntervalSeconds"`
}

// BatchConfig controls the Batch Sink's dual-trigger flush.
type BatchConfig struct {
	FlushIntervalSeconds int `yaml:"flushIntervalSeconds"`
	AutoFlushThreshold   int `yaml:"autoFlushThreshold"`
	MaxChunk             int `yaml:"maxChunk"`
}

// ResilienceConfig controls the store-and-forward spool.
type ResilienceConfig struct {
	StoreForwardPath     string `yaml:"storeForwardPath"`
	MaxLocalStorageRecords int  `yaml:"maxLocalStorageRecords"`

	// ShutdownFlushTimeoutSeconds bounds the final flush on graceful
	// shutdown.
	ShutdownFlushTimeoutSeconds int `yaml:"shutdownFlushTimeoutSeconds"`
}

// StorageConfig controls the relational store connection.
type StorageConfig struct {
	Driver           string `yaml:"driver"`
	ConnectionString string `yaml:"connectionString"`
}

// EventBusConfig selects an events.Publisher implementation. Internals
// beyond this selection are explicitly not specified (spec.md §1).
type EventBusConfig struct {
	// Kind is one of "none", "broker", or "webhook".
	Kind string `yaml:"kind"`

	// WebhookURL is required when Kind is "webhook".
	WebhookURL string `yaml:"webhookUrl"`
}

// LoggingConfig controls the zerolog output mode.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls the /metrics collector sampling cadence.
type MetricsConfig struct {
	ListenAddr          string `yaml:"listenAddr"`
	CollectorIntervalSeconds int `yaml:"collectorIntervalSeconds"`
}

// HealthConfig controls the /healthz and /readyz endpoints.
type HealthConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// Config is the acquisition worker's full configuration, loaded from
// YAML and overridable by CLI flags for the common knobs.
type Config struct {
	DataDir     string           `yaml:"dataDir"`
	Opc         OpcConfig        `yaml:"opc"`
	Batch       BatchConfig      `yaml:"batch"`
	Resilience  ResilienceConfig `yaml:"resilience"`
	Storage     StorageConfig    `yaml:"storage"`
	EventBus    EventBusConfig   `yaml:"eventBus"`
	Logging     LoggingConfig    `yaml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Health      HealthConfig     `yaml:"health"`
}

// Default returns a Config with every field set to the defaults named in
// spec.md §6.
func Default() Config {
	return Config{
		DataDir: "./acquisitiond-data",
		Opc: OpcConfig{
			UseSimulator:            true,
			SamplingIntervalSeconds: 0.5,
		},
		Batch: BatchConfig{
			FlushIntervalSeconds: 10,
			AutoFlushThreshold:   5000,
			MaxChunk:             1000,
		},
		Resilience: ResilienceConfig{
			StoreForwardPath:            "./acquisitiond-data/spool",
			MaxLocalStorageRecords:      100000,
			ShutdownFlushTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Driver:           "sqlite",
			ConnectionString: "./acquisitiond-data/acquisitiond.db",
		},
		EventBus: EventBusConfig{
			Kind: "broker",
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Metrics: MetricsConfig{
			ListenAddr:               ":9090",
			CollectorIntervalSeconds: 15,
		},
		Health: HealthConfig{
			ListenAddr: ":8081",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then validates the
// result. An empty path is not an error — the process runs on defaults —
// but a named file that does not exist or cannot be parsed is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, &ConfigurationError{Field: "path", Message: fmt.Sprintf("config file %q does not exist", path)}
			}
			return Config{}, &ConfigurationError{Field: "path", Message: err.Error()}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &ConfigurationError{Field: "path", Message: fmt.Sprintf("invalid YAML: %v", err)}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the process assumes hold.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return &ConfigurationError{Field: "dataDir", Message: "must not be empty"}
	}
	if c.Batch.FlushIntervalSeconds <= 0 {
		return &ConfigurationError{Field: "batch.flushIntervalSeconds", Message: "must be positive"}
	}
	if c.Batch.AutoFlushThreshold <= 0 {
		return &ConfigurationError{Field: "batch.autoFlushThreshold", Message: "must be positive"}
	}
	if c.Batch.MaxChunk <= 0 {
		return &ConfigurationError{Field: "batch.maxChunk", Message: "must be positive"}
	}
	if c.Resilience.StoreForwardPath == "" {
		return &ConfigurationError{Field: "resilience.storeForwardPath", Message: "must not be empty"}
	}
	if c.Resilience.MaxLocalStorageRecords < 0 {
		return &ConfigurationError{Field: "resilience.maxLocalStorageRecords", Message: "must not be negative"}
	}
	if !c.Opc.UseSimulator {
		return &ConfigurationError{Field: "opc.useSimulator", Message: "a real OPC UA client is out of scope; only the simulator is implemented"}
	}
	if c.Storage.ConnectionString == "" {
		return &ConfigurationError{Field: "storage.connectionString", Message: "must not be empty"}
	}
	switch c.EventBus.Kind {
	case "none", "broker":
	case "webhook":
		if c.EventBus.WebhookURL == "" {
			return &ConfigurationError{Field: "eventBus.webhookUrl", Message: "required when eventBus.kind is \"webhook\""}
		}
	default:
		return &ConfigurationError{Field: "eventBus.kind", Message: fmt.Sprintf("unknown kind %q, want one of none, broker, webhook", c.EventBus.Kind)}
	}
	return nil
}
