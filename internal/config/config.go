// Package config holds the application configuration: encoder invocation
// settings, target-size search tuning, watch-folder settings, and logging.
// Values come from defaults, an optional yaml/json file, and environment
// variable overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Encoder EncoderConfig `yaml:"encoder" json:"encoder"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// EncoderConfig controls how the external GIF encoder is invoked and how
// the target-size search behaves.
type EncoderConfig struct {
	Path           string        `yaml:"path" json:"path" env:"GIFSMITH_ENCODER_PATH" default:"gifsicle"`
	OptimizeLevel  int           `yaml:"optimize_level" json:"optimize_level" env:"GIFSMITH_OPTIMIZE_LEVEL" default:"3"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" env:"GIFSMITH_ENCODER_TIMEOUT" default:"30s"`
	MaxIterations  int           `yaml:"max_iterations" json:"max_iterations" env:"GIFSMITH_MAX_ITERATIONS" default:"10"`
	Tolerance      float64       `yaml:"tolerance" json:"tolerance" env:"GIFSMITH_TOLERANCE" default:"0.05"`
	MinTargetBytes int64         `yaml:"min_target_bytes" json:"min_target_bytes" env:"GIFSMITH_MIN_TARGET_BYTES" default:"10240"`
	MaxTargetBytes int64         `yaml:"max_target_bytes" json:"max_target_bytes" env:"GIFSMITH_MAX_TARGET_BYTES" default:"52428800"`
}

// WatchConfig controls the drop-folder batch optimizer.
type WatchConfig struct {
	InputDir         string        `yaml:"input_dir" json:"input_dir" env:"GIFSMITH_WATCH_INPUT"`
	OutputDir        string        `yaml:"output_dir" json:"output_dir" env:"GIFSMITH_WATCH_OUTPUT"`
	Mode             string        `yaml:"mode" json:"mode" env:"GIFSMITH_WATCH_MODE" default:"quality"`
	Quality          int           `yaml:"quality" json:"quality" env:"GIFSMITH_WATCH_QUALITY" default:"85"`
	TargetSizeBytes  int64         `yaml:"target_size_bytes" json:"target_size_bytes" env:"GIFSMITH_WATCH_TARGET_BYTES"`
	Workers          int           `yaml:"workers" json:"workers" env:"GIFSMITH_WATCH_WORKERS" default:"0"`
	DebounceInterval time.Duration `yaml:"debounce_interval" json:"debounce_interval" env:"GIFSMITH_WATCH_DEBOUNCE" default:"2s"`
	MaxCPUPercent    float64       `yaml:"max_cpu_percent" json:"max_cpu_percent" env:"GIFSMITH_MAX_CPU_PERCENT" default:"85.0"`
	MaxMemoryPercent float64       `yaml:"max_memory_percent" json:"max_memory_percent" env:"GIFSMITH_MAX_MEMORY_PERCENT" default:"90.0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"GIFSMITH_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"GIFSMITH_LOG_FORMAT" default:"console"`
}

// Manager manages application configuration with change notification.
type Manager struct {
	config     *Config
	configPath string
	watchers   []Watcher
	mu         sync.RWMutex
}

// Watcher is called when configuration changes.
type Watcher func(oldConfig, newConfig *Config)

// NewManager creates a configuration manager seeded with defaults.
func NewManager() *Manager {
	return &Manager{
		config:   Default(),
		watchers: make([]Watcher, 0),
	}
}

// Default returns the default application configuration.
func Default() *Config {
	return &Config{
		Encoder: EncoderConfig{
			Path:           "gifsicle",
			OptimizeLevel:  3,
			Timeout:        30 * time.Second,
			MaxIterations:  10,
			Tolerance:      0.05,
			MinTargetBytes: 10 * 1024,
			MaxTargetBytes: 50 * 1024 * 1024,
		},
		Watch: WatchConfig{
			Mode:             "quality",
			Quality:          85,
			Workers:          0, // Auto-detect
			DebounceInterval: 2 * time.Second,
			MaxCPUPercent:    85.0,
			MaxMemoryPercent: 90.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from file and environment variables. An empty
// or missing path means defaults plus environment only.
func (m *Manager) Load(configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := *m.config
	m.configPath = configPath

	newConfig := Default()

	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := Validate(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = newConfig

	for _, watcher := range m.watchers {
		go watcher(&oldConfig, newConfig)
	}

	return nil
}

// Reload re-reads configuration from the previously loaded path.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.configPath
	m.mu.RUnlock()
	return m.Load(path)
}

// Get returns the current configuration (thread-safe copy).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configCopy := *m.config
	return &configCopy
}

// AddWatcher adds a configuration change watcher.
func (m *Manager) AddWatcher(watcher Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, watcher)
}

// Validate checks a configuration for values the optimizer cannot run with.
func Validate(config *Config) error {
	if config.Encoder.Path == "" {
		return fmt.Errorf("encoder path must not be empty")
	}
	if config.Encoder.OptimizeLevel < 1 || config.Encoder.OptimizeLevel > 3 {
		return fmt.Errorf("invalid optimize level: %d", config.Encoder.OptimizeLevel)
	}
	if config.Encoder.Timeout <= 0 {
		return fmt.Errorf("invalid encoder timeout: %s", config.Encoder.Timeout)
	}
	if config.Encoder.MaxIterations < 1 {
		return fmt.Errorf("invalid max iterations: %d", config.Encoder.MaxIterations)
	}
	if config.Encoder.Tolerance <= 0 || config.Encoder.Tolerance >= 1 {
		return fmt.Errorf("invalid tolerance: %g", config.Encoder.Tolerance)
	}
	if config.Encoder.MinTargetBytes <= 0 || config.Encoder.MinTargetBytes >= config.Encoder.MaxTargetBytes {
		return fmt.Errorf("invalid target size bounds: [%d, %d]",
			config.Encoder.MinTargetBytes, config.Encoder.MaxTargetBytes)
	}
	if config.Watch.Mode != "quality" && config.Watch.Mode != "target-size" {
		return fmt.Errorf("unsupported watch mode: %s", config.Watch.Mode)
	}
	if config.Watch.Quality < 1 || config.Watch.Quality > 100 {
		return fmt.Errorf("invalid watch quality: %d", config.Watch.Quality)
	}
	if config.Watch.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", config.Watch.Workers)
	}
	return nil
}

// Helper functions

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
