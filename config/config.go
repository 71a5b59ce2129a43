// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files. It supports server transport settings,
// the isolate binary and box-root location, and the default resource
// limits applied to compile and execute phases.
package config

import (
	"fmt"
	"reflect"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/sandboxrunner/isolate"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Isolate IsolateConfig `mapstructure:"isolate"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// IsolateConfig holds the settings needed to drive the external isolator
// binary.
type IsolateConfig struct {
	BinaryName       string   `mapstructure:"binary_name"`
	BoxRoot          string   `mapstructure:"box_root"`
	NetworkEnabled   bool     `mapstructure:"network_enabled"`
	ExtraAllowedDirs []string `mapstructure:"extra_allowed_dirs"`
}

// LimitsConfig holds the default resource limits applied to compile and
// execute phases, overridable per-request down to the test level.
type LimitsConfig struct {
	CompileWallTimeSec  float64 `mapstructure:"compile_wall_time_sec"`
	CompileCPUTimeSec   float64 `mapstructure:"compile_cpu_time_sec"`
	CompileMemoryKB     int64   `mapstructure:"compile_memory_kb"`
	ExecuteWallTimeSec  float64 `mapstructure:"execute_wall_time_sec"`
	ExecuteCPUTimeSec   float64 `mapstructure:"execute_cpu_time_sec"`
	ExecuteExtraTimeSec float64 `mapstructure:"execute_extra_time_sec"`
	ExecuteMemoryKB     int64   `mapstructure:"execute_memory_kb"`
	FileSizeKB          int64   `mapstructure:"file_size_kb"`
	MaxProcesses        int     `mapstructure:"max_processes"`
	MaxOpenFiles        int     `mapstructure:"max_open_files"`
	StdoutLimitBytes    int     `mapstructure:"stdout_limit_bytes"`
	StderrLimitBytes    int     `mapstructure:"stderr_limit_bytes"`
}

// CompileLimits converts the configured compile defaults to isolate.Limits.
func (l LimitsConfig) CompileLimits() isolate.Limits {
	return isolate.Limits{
		WallTimeSec:      l.CompileWallTimeSec,
		CPUTimeSec:       l.CompileCPUTimeSec,
		MemoryKB:         l.CompileMemoryKB,
		FileSizeKB:       l.FileSizeKB,
		MaxProcesses:     l.MaxProcesses,
		MaxOpenFiles:     l.MaxOpenFiles,
		StdoutLimitBytes: l.StdoutLimitBytes,
		StderrLimitBytes: l.StderrLimitBytes,
	}
}

// ExecuteLimits converts the configured execute defaults to isolate.Limits.
func (l LimitsConfig) ExecuteLimits() isolate.Limits {
	return isolate.Limits{
		WallTimeSec:      l.ExecuteWallTimeSec,
		CPUTimeSec:       l.ExecuteCPUTimeSec,
		ExtraTimeSec:     l.ExecuteExtraTimeSec,
		MemoryKB:         l.ExecuteMemoryKB,
		FileSizeKB:       l.FileSizeKB,
		MaxProcesses:     l.MaxProcesses,
		MaxOpenFiles:     l.MaxOpenFiles,
		StdoutLimitBytes: l.StdoutLimitBytes,
		StderrLimitBytes: l.StderrLimitBytes,
	}
}

// New loads and validates the application configuration.
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	const (
		defaultHTTPPort         = 8080
		defaultCompileWallTime  = 20.0
		defaultCompileCPU       = 15.0
		defaultCompileMemoryKB  = 512 * 1024
		defaultExecuteWallTime  = 10.0
		defaultExecuteCPU       = 5.0
		defaultExecuteExtraTime = 1.0
		defaultExecuteMemoryKB  = 256 * 1024
		defaultFileSizeKB       = 10 * 1024
		defaultMaxProcesses     = 32
		defaultMaxOpenFiles     = 64
		defaultOutputLimitBytes = 10 * 1024 * 1024
	)

	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", defaultHTTPPort)

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("isolate.binary_name", "isolate")
	viper.SetDefault("isolate.box_root", "/var/local/lib/sandboxrunner")
	viper.SetDefault("isolate.network_enabled", false)
	viper.SetDefault("isolate.extra_allowed_dirs", []string{})

	viper.SetDefault("limits.compile_wall_time_sec", defaultCompileWallTime)
	viper.SetDefault("limits.compile_cpu_time_sec", defaultCompileCPU)
	viper.SetDefault("limits.compile_memory_kb", defaultCompileMemoryKB)
	viper.SetDefault("limits.execute_wall_time_sec", defaultExecuteWallTime)
	viper.SetDefault("limits.execute_cpu_time_sec", defaultExecuteCPU)
	viper.SetDefault("limits.execute_extra_time_sec", defaultExecuteExtraTime)
	viper.SetDefault("limits.execute_memory_kb", defaultExecuteMemoryKB)
	viper.SetDefault("limits.file_size_kb", defaultFileSizeKB)
	viper.SetDefault("limits.max_processes", defaultMaxProcesses)
	viper.SetDefault("limits.max_open_files", defaultMaxOpenFiles)
	viper.SetDefault("limits.stdout_limit_bytes", defaultOutputLimitBytes)
	viper.SetDefault("limits.stderr_limit_bytes", defaultOutputLimitBytes)

	if configReadErr := viper.ReadInConfig(); configReadErr != nil {
		if _, ok := configReadErr.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", configReadErr)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// Dump renders the effective configuration as YAML, for startup
// diagnostics — what the process actually resolved after defaults and the
// config file have been applied. Keys are the same mapstructure names the
// config file uses.
func (c *Config) Dump() ([]byte, error) {
	var toMap func(v reflect.Value) any
	toMap = func(v reflect.Value) any {
		if v.Kind() != reflect.Struct {
			return v.Interface()
		}
		out := make(map[string]any, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			out[v.Type().Field(i).Tag.Get("mapstructure")] = toMap(v.Field(i))
		}
		return out
	}
	return yaml.Marshal(toMap(reflect.ValueOf(*c)))
}

// validate ensures the configuration is usable.
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Isolate.BinaryName == "" {
		return fmt.Errorf("isolate.binary_name must not be empty")
	}

	if c.Isolate.BoxRoot == "" {
		return fmt.Errorf("isolate.box_root must not be empty")
	}

	if c.Limits.CompileWallTimeSec <= 0 {
		return fmt.Errorf("limits.compile_wall_time_sec must be positive, got: %g", c.Limits.CompileWallTimeSec)
	}

	if c.Limits.ExecuteWallTimeSec <= 0 {
		return fmt.Errorf("limits.execute_wall_time_sec must be positive, got: %g", c.Limits.ExecuteWallTimeSec)
	}

	if c.Limits.CompileMemoryKB <= 0 {
		return fmt.Errorf("limits.compile_memory_kb must be positive, got: %d", c.Limits.CompileMemoryKB)
	}

	if c.Limits.ExecuteMemoryKB <= 0 {
		return fmt.Errorf("limits.execute_memory_kb must be positive, got: %d", c.Limits.ExecuteMemoryKB)
	}

	return nil
}
