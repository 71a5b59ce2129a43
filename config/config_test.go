package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8080,
		},
		Isolate: IsolateConfig{
			BinaryName: "isolate",
			BoxRoot:    "/var/local/lib/sandboxrunner",
		},
		Limits: LimitsConfig{
			CompileWallTimeSec: 20,
			CompileMemoryKB:    512 * 1024,
			ExecuteWallTimeSec: 10,
			ExecuteMemoryKB:    256 * 1024,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		err := validConfig().validate()
		require.NoError(t, err)
	})

	t.Run("InvalidServerTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "invalid"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.transport")
	})

	t.Run("MissingIsolateBinaryName", func(t *testing.T) {
		cfg := validConfig()
		cfg.Isolate.BinaryName = ""

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "isolate.binary_name must not be empty")
	})

	t.Run("MissingIsolateBoxRoot", func(t *testing.T) {
		cfg := validConfig()
		cfg.Isolate.BoxRoot = ""

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "isolate.box_root must not be empty")
	})

	t.Run("InvalidCompileWallTime", func(t *testing.T) {
		cfg := validConfig()
		cfg.Limits.CompileWallTimeSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limits.compile_wall_time_sec must be positive")
	})

	t.Run("InvalidExecuteWallTime", func(t *testing.T) {
		cfg := validConfig()
		cfg.Limits.ExecuteWallTimeSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limits.execute_wall_time_sec must be positive")
	})

	t.Run("InvalidCompileMemory", func(t *testing.T) {
		cfg := validConfig()
		cfg.Limits.CompileMemoryKB = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limits.compile_memory_kb must be positive")
	})

	t.Run("InvalidExecuteMemory", func(t *testing.T) {
		cfg := validConfig()
		cfg.Limits.ExecuteMemoryKB = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limits.execute_memory_kb must be positive")
	})
}

func TestLimitsConversion(t *testing.T) {
	cfg := validConfig()
	cfg.Limits.FileSizeKB = 1024
	cfg.Limits.MaxProcesses = 16
	cfg.Limits.MaxOpenFiles = 32
	cfg.Limits.StdoutLimitBytes = 1000
	cfg.Limits.StderrLimitBytes = 2000
	cfg.Limits.ExecuteExtraTimeSec = 1.5

	compile := cfg.Limits.CompileLimits()
	assert.Equal(t, cfg.Limits.CompileWallTimeSec, compile.WallTimeSec)
	assert.Equal(t, cfg.Limits.CompileMemoryKB, compile.MemoryKB)
	assert.Equal(t, int64(1024), compile.FileSizeKB)

	execute := cfg.Limits.ExecuteLimits()
	assert.Equal(t, cfg.Limits.ExecuteWallTimeSec, execute.WallTimeSec)
	assert.Equal(t, cfg.Limits.ExecuteMemoryKB, execute.MemoryKB)
	assert.Equal(t, 1.5, execute.ExtraTimeSec)
	assert.Equal(t, 1000, execute.StdoutLimitBytes)
	assert.Equal(t, 2000, execute.StderrLimitBytes)
}

func TestConfigDump(t *testing.T) {
	cfg := validConfig()

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(out), "transport: http")
	assert.Contains(t, string(out), "binary_name: isolate")
}
