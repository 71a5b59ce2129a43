package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/sandboxrunner/config"
	"github.com/isdmx/sandboxrunner/engine"
	"github.com/isdmx/sandboxrunner/isolate"
	"github.com/isdmx/sandboxrunner/logger"
	"github.com/isdmx/sandboxrunner/mcpserver"
)

// fakeSandbox is a minimal isolate.Sandbox double good enough to drive the
// engine end to end without a real isolator binary installed.
type fakeSandbox struct {
	boxDir string
	stdout []byte
	status isolate.Status
}

func (f *fakeSandbox) Acquire(_ context.Context, _ isolate.Limits, _ []string) (*isolate.Handle, error) {
	return nil, nil
}
func (f *fakeSandbox) Release(_ context.Context, _ *isolate.Handle) error { return nil }
func (f *fakeSandbox) Path(_ *isolate.Handle) string                     { return f.boxDir }
func (f *fakeSandbox) Run(_ context.Context, _ *isolate.Handle, _ []string, _ map[string]string, _ []byte) (isolate.Outcome, error) {
	return isolate.Outcome{Meta: isolate.Meta{Status: f.status}, Stdout: f.stdout}, nil
}
func (f *fakeSandbox) FS() isolate.FileSystem { return isolate.RealFileSystem{} }

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Transport: "stdio", HTTPPort: 8080},
		Logging: config.LoggingConfig{Mode: "development", Level: "debug"},
		Isolate: config.IsolateConfig{BinaryName: "isolate", BoxRoot: "/tmp"},
		Limits: config.LimitsConfig{
			CompileWallTimeSec: 20, CompileMemoryKB: 512 * 1024,
			ExecuteWallTimeSec: 10, ExecuteMemoryKB: 256 * 1024,
		},
	}
}

func TestIntegrationConfigLogger(t *testing.T) {
	cfg := testConfig()

	testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	require.NoError(t, err)
	require.NotNil(t, testLogger)

	testLogger.Info("Integration test started")
	_ = testLogger.Sync()
}

func TestIntegrationRegistryDiscovery(t *testing.T) {
	testLogger := zaptest.NewLogger(t)

	registry := engine.NewRegistry(testLogger)
	for _, d := range engine.DiscoverBuiltins(testLogger) {
		registered, _ := registry.Register(d)
		assert.True(t, registered)
	}

	// Whatever subset of the 18 languages happens to have its binaries on
	// this machine's PATH should resolve cleanly by key.
	for _, key := range registry.Keys() {
		d, err := registry.Resolve(key)
		require.NoError(t, err)
		assert.Equal(t, key, d.RegistryKey())
	}

	_, err := registry.Resolve("not-a-real-language")
	require.Error(t, err)
}

func TestIntegrationFullMCPWiring(t *testing.T) {
	cfg := testConfig()
	mcpLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	require.NoError(t, err)

	registry := engine.NewRegistry(mcpLogger)
	registry.Register(&engine.LanguageDescriptor{
		Name:        "Python",
		SourceExt:   ".py",
		Interpreter: engine.NewProgram("true"),
	})

	sandbox := &fakeSandbox{boxDir: t.TempDir(), stdout: []byte("42\n"), status: isolate.StatusOK}
	executor := engine.NewExecutor(sandbox, mcpLogger)

	server, err := mcpserver.New(cfg, mcpLogger, registry, executor, engine.NewPipelineExecutor(sandbox, mcpLogger))
	require.NoError(t, err)
	require.NotNil(t, server)

	mcpServer := server.GetMCPServer()
	require.NotNil(t, mcpServer)
}

func TestIntegrationExecutorMissingArtifactSkipsTests(t *testing.T) {
	testLogger := zaptest.NewLogger(t)

	registry := engine.NewRegistry(testLogger)
	registry.Register(&engine.LanguageDescriptor{
		Name:      "C",
		SourceExt: ".c",
		Compiler:  engine.NewProgram("true"),
	})

	lang, err := registry.Resolve("c")
	require.NoError(t, err)

	sandbox := &fakeSandbox{boxDir: t.TempDir(), stdout: []byte("42\n"), status: isolate.StatusOK}
	executor := engine.NewExecutor(sandbox, testLogger)

	result, err := executor.Run(context.Background(), lang, engine.Request{
		Lang:   lang.RegistryKey(),
		Source: []byte("int main(void) { return 0; }"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Compile)

	// The fake compiler reports success and writes stdout, but never
	// writes a "compiled" artifact to the box. A compiler that exits OK
	// still needs a readable artifact before any test runs; the missing
	// artifact appends to stderr rather than touching meta.
	assert.Equal(t, isolate.StatusOK, result.Compile.Meta.Status)
	assert.Contains(t, string(result.Compile.Stderr), "Cannot find result binary.")
	assert.Nil(t, result.Tests)
}
