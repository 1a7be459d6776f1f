// Package config loads the fabric's configuration from environment
// variables, with an optional YAML file providing lower-priority defaults.
// There is no remote config-api client/manager split here: every
// component in this process reads the same static Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every option from the external interfaces table.
type Config struct {
	EBPFEnableSyscallTrace bool          `yaml:"ebpf_enable_syscall_trace"`
	EBPFBufferPages        int           `yaml:"ebpf_buffer_pages"`
	EBPFMinLatencyNs       uint64        `yaml:"ebpf_min_latency_ns"`

	CollectorsCPUInterval     time.Duration `yaml:"collectors_cpu_interval"`
	CollectorsMemoryInterval  time.Duration `yaml:"collectors_memory_interval"`
	CollectorsDiskInterval    time.Duration `yaml:"collectors_disk_interval"`
	CollectorsNetworkInterval time.Duration `yaml:"collectors_network_interval"`
	CollectorsProcessInterval time.Duration `yaml:"collectors_process_interval"`
	CollectorsProcessTopN     int           `yaml:"collectors_process_top_n"`

	MLZThreshold        float64       `yaml:"ml_z_threshold"`
	MLDetectionInterval time.Duration `yaml:"ml_detection_interval"`
	MLMinSamples        int           `yaml:"ml_min_samples"`
	MLCooldown          time.Duration `yaml:"ml_cooldown"`
	MLEnsembleThreshold float64       `yaml:"ml_ensemble_threshold"`
	MLMinVoters         int           `yaml:"ml_min_voters"`
	MLHistoryWindowSize int           `yaml:"ml_history_window_size"`
	MLReconstructionOn  bool          `yaml:"ml_reconstruction_enabled"`

	BusBufferSize int `yaml:"bus_buffer_size"`

	ProcessorEventHistorySize int           `yaml:"processor_event_history_size"`
	ProcessorCacheCapacity    int           `yaml:"processor_cache_capacity"`
	ProcessorCacheTTL         time.Duration `yaml:"processor_cache_ttl"`

	NATSURL      string `yaml:"nats_url"`
	NATSSubject  string `yaml:"nats_subject"`
	NATSCompress bool   `yaml:"nats_compress"`

	HTTPAddress string `yaml:"http_address"`

	LogLevel string `yaml:"log_level"`
}

// Load builds the Config: a YAML file at path (if non-empty and present)
// supplies defaults, environment variables win over those, and hardcoded
// fallbacks win over neither.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := mergeYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		EBPFEnableSyscallTrace: true,
		EBPFBufferPages:        64,
		EBPFMinLatencyNs:       0,

		CollectorsCPUInterval:     2 * time.Second,
		CollectorsMemoryInterval:  5 * time.Second,
		CollectorsDiskInterval:    5 * time.Second,
		CollectorsNetworkInterval: 5 * time.Second,
		CollectorsProcessInterval: 5 * time.Second,
		CollectorsProcessTopN:     20,

		MLZThreshold:        3.0,
		MLDetectionInterval: 3 * time.Second,
		MLMinSamples:        20,
		MLCooldown:          30 * time.Second,
		MLEnsembleThreshold: 0.7,
		MLMinVoters:         2,
		MLHistoryWindowSize: 1000,
		MLReconstructionOn:  false,

		BusBufferSize: 10000,

		ProcessorEventHistorySize: 5000,
		ProcessorCacheCapacity:    2048,
		ProcessorCacheTTL:         30 * time.Second,

		NATSURL:      "nats://localhost:4222",
		NATSSubject:  "fabric.anomalies",
		NATSCompress: false,

		HTTPAddress: ":8090",

		LogLevel: "info",
	}
}

func mergeYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.EBPFEnableSyscallTrace = getBoolEnv("EBPF_ENABLE_SYSCALL_TRACE", cfg.EBPFEnableSyscallTrace)
	cfg.EBPFBufferPages = getIntEnv("EBPF_BUFFER_PAGES", cfg.EBPFBufferPages)
	cfg.EBPFMinLatencyNs = getUint64Env("EBPF_MIN_LATENCY_NS", cfg.EBPFMinLatencyNs)

	cfg.CollectorsCPUInterval = getDurationEnv("COLLECTORS_CPU_INTERVAL_SEC", cfg.CollectorsCPUInterval)
	cfg.CollectorsMemoryInterval = getDurationEnv("COLLECTORS_MEMORY_INTERVAL_SEC", cfg.CollectorsMemoryInterval)
	cfg.CollectorsDiskInterval = getDurationEnv("COLLECTORS_DISK_INTERVAL_SEC", cfg.CollectorsDiskInterval)
	cfg.CollectorsNetworkInterval = getDurationEnv("COLLECTORS_NETWORK_INTERVAL_SEC", cfg.CollectorsNetworkInterval)
	cfg.CollectorsProcessInterval = getDurationEnv("COLLECTORS_PROCESS_INTERVAL_SEC", cfg.CollectorsProcessInterval)
	cfg.CollectorsProcessTopN = getIntEnv("COLLECTORS_PROCESS_TOP_N", cfg.CollectorsProcessTopN)

	cfg.MLZThreshold = getFloat64Env("ML_Z_THRESHOLD", cfg.MLZThreshold)
	cfg.MLDetectionInterval = getDurationEnv("ML_DETECTION_INTERVAL_SEC", cfg.MLDetectionInterval)
	cfg.MLMinSamples = getIntEnv("ML_MIN_SAMPLES", cfg.MLMinSamples)
	cfg.MLCooldown = getDurationEnv("ML_COOLDOWN_SEC", cfg.MLCooldown)
	cfg.MLEnsembleThreshold = getFloat64Env("ML_ENSEMBLE_THRESHOLD", cfg.MLEnsembleThreshold)
	cfg.MLMinVoters = getIntEnv("ML_MIN_VOTERS", cfg.MLMinVoters)
	cfg.MLHistoryWindowSize = getIntEnv("ML_HISTORY_WINDOW_SIZE", cfg.MLHistoryWindowSize)
	cfg.MLReconstructionOn = getBoolEnv("ML_RECONSTRUCTION_ENABLED", cfg.MLReconstructionOn)

	cfg.BusBufferSize = getIntEnv("BUS_BUFFER_SIZE", cfg.BusBufferSize)

	cfg.ProcessorEventHistorySize = getIntEnv("PROCESSOR_EVENT_HISTORY_SIZE", cfg.ProcessorEventHistorySize)
	cfg.ProcessorCacheCapacity = getIntEnv("PROCESSOR_CACHE_CAPACITY", cfg.ProcessorCacheCapacity)
	cfg.ProcessorCacheTTL = getDurationEnv("PROCESSOR_CACHE_TTL_SEC", cfg.ProcessorCacheTTL)

	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = getEnv("NATS_SUBJECT", cfg.NATSSubject)
	cfg.NATSCompress = getBoolEnv("NATS_COMPRESS", cfg.NATSCompress)

	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", cfg.HTTPAddress)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

// Validate rejects configurations that would make a component divide by
// zero or otherwise misbehave at startup.
func (c *Config) Validate() error {
	if c.BusBufferSize <= 0 {
		return fmt.Errorf("bus_buffer_size must be positive")
	}
	if c.MLMinSamples < 0 {
		return fmt.Errorf("ml_min_samples must not be negative")
	}
	if c.MLDetectionInterval <= 0 {
		return fmt.Errorf("ml_detection_interval must be positive")
	}
	if c.ProcessorCacheCapacity <= 0 {
		return fmt.Errorf("processor_cache_capacity must be positive")
	}
	if c.MLHistoryWindowSize <= 0 {
		return fmt.Errorf("ml_history_window_size must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getUint64Env(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat64Env(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
