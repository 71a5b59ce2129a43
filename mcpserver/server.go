// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes
// tools for code execution. It uses the mark3labs/mcp-go library to
// handle the protocol details and provides the execute_sandboxed_code
// tool as the primary interface for running one job against the engine.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/sandboxrunner/config"
	"github.com/isdmx/sandboxrunner/engine"
	"github.com/isdmx/sandboxrunner/isolate"
)

// ToolTest is one test declared by a caller of execute_sandboxed_code.
type ToolTest struct {
	Name  string `json:"name,omitempty" jsonschema_description:"Test name, defaults to testNNN"`
	Stdin string `json:"stdin,omitempty" jsonschema_description:"Standard input fed to this test run"`
	Fatal bool   `json:"fatal,omitempty" jsonschema_description:"Stop remaining tests if this one doesn't succeed"`
}

// ExecuteRequest represents the input parameters for code execution.
type ExecuteRequest struct {
	Language string     `json:"language" jsonschema_description:"Registered language name, e.g. \"python\", \"c++\"" jsonschema:"required"`
	Source   string     `json:"source" jsonschema_description:"User-provided source code" jsonschema:"required"`
	Tests    []ToolTest `json:"tests,omitempty" jsonschema_description:"Test runs; defaults to a single test with empty stdin"`
	AllFatal bool       `json:"all_fatal,omitempty" jsonschema_description:"Stop remaining tests after the first non-OK one"`
	// Stages, when present, chains registered languages' compile steps
	// before executing the last stage: each entry names a registered
	// language, and "source" is the input fed to the first stage;
	// "language" is not used. Any non-empty Stages list, even a single
	// stage, runs through the pipeline executor instead of the plain one.
	Stages []string `json:"stages,omitempty" jsonschema_description:"Registered language names to chain as compile stages, last stage's interpreter/compiler runs the tests"`
}

// PhaseResponse is one compile or test phase in the result tree.
type PhaseResponse struct {
	Name        string  `json:"name,omitempty"`
	Stdout      string  `json:"stdout"`
	Stderr      string  `json:"stderr"`
	Status      string  `json:"status"`
	ExitCode    int     `json:"exit_code"`
	Time        float64 `json:"time"`
	TimeWall    float64 `json:"time_wall"`
	MemoryBytes int64   `json:"memory_bytes"`
	Message     string  `json:"message,omitempty"`
}

// ExecuteResponse represents the structured response from code execution.
type ExecuteResponse struct {
	JobID   string          `json:"job_id"`
	Compile *PhaseResponse  `json:"compile,omitempty"`
	Tests   []PhaseResponse `json:"tests,omitempty"`
	Error   string          `json:"error,omitempty"`
	Success bool            `json:"success"`
}

// MCPServer represents the MCP server.
type MCPServer struct {
	config           *config.Config
	logger           *zap.Logger
	registry         *engine.Registry
	executor         *engine.Executor
	pipelineExecutor *engine.PipelineExecutor
	mcpServer        *server.MCPServer
}

// New creates a new MCPServer.
func New(cfg *config.Config, logger *zap.Logger, registry *engine.Registry, executor *engine.Executor, pipelineExecutor *engine.PipelineExecutor) (*MCPServer, error) {
	s := &MCPServer{
		config:           cfg,
		logger:           logger,
		registry:         registry,
		executor:         executor,
		pipelineExecutor: pipelineExecutor,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("isolate.binary_name", s.config.Isolate.BinaryName),
		zap.String("isolate.box_root", s.config.Isolate.BoxRoot),
		zap.Strings("languages", registry.Keys()),
	)

	s.mcpServer = server.NewMCPServer("sandboxrunner-executor", "A sandboxed multi-language code execution server")
	s.registerExecuteSandboxedCodeTool()

	return s, nil
}

// registerExecuteSandboxedCodeTool registers the execute_sandboxed_code tool.
func (s *MCPServer) registerExecuteSandboxedCodeTool() {
	tool := mcp.NewTool("execute_sandboxed_code",
		mcp.WithDescription("Execute untrusted code in a sandboxed environment"),
		mcp.WithInputSchema[ExecuteRequest](),
		mcp.WithOutputSchema[ExecuteResponse](),
	)

	s.mcpServer.AddTool(tool, mcp.NewStructuredToolHandler(s.handleExecuteSandboxedCodeStructured))
}

// handleExecuteSandboxedCodeStructured handles the execute_sandboxed_code tool.
func (s *MCPServer) handleExecuteSandboxedCodeStructured(
	ctx context.Context,
	_ mcp.CallToolRequest,
	args ExecuteRequest,
) (ExecuteResponse, error) {
	jobID := uuid.NewString()
	s.logger.Info("code execution requested", zap.String("job_id", jobID), zap.String("language", args.Language), zap.Int("stage_count", len(args.Stages)))

	req := engine.Request{
		JobID:    jobID,
		Source:   []byte(args.Source),
		Compile:  s.config.Limits.CompileLimits(),
		Execute:  s.config.Limits.ExecuteLimits(),
		AllFatal: args.AllFatal,
	}
	for _, t := range args.Tests {
		req.Tests = append(req.Tests, engine.Test{
			Name:  t.Name,
			Stdin: []byte(t.Stdin),
			Fatal: t.Fatal,
		})
	}

	var result engine.Result
	var err error
	if len(args.Stages) > 0 {
		result, err = s.runPipeline(ctx, jobID, args.Stages, req)
	} else {
		var lang *engine.LanguageDescriptor
		lang, err = s.registry.Resolve(args.Language)
		if err != nil {
			return ExecuteResponse{JobID: jobID, Success: false, Error: err.Error()}, nil
		}
		req.Lang = lang.RegistryKey()
		result, err = s.executor.Run(ctx, lang, req)
	}
	if err != nil {
		s.logger.Error("sandbox execution failed", zap.Error(err), zap.String("job_id", jobID), zap.String("language", args.Language))
		return ExecuteResponse{JobID: jobID, Success: false, Error: fmt.Sprintf("execution failed: %v", err)}, nil
	}

	resp := ExecuteResponse{JobID: jobID, Success: true}
	if result.Compile != nil {
		resp.Compile = toPhaseResponse(*result.Compile)
	}
	for _, t := range result.Tests {
		resp.Tests = append(resp.Tests, *toPhaseResponse(t))
	}

	s.logger.Info("code execution completed",
		zap.String("job_id", jobID),
		zap.String("language", args.Language),
		zap.Int("test_count", len(resp.Tests)))

	return resp, nil
}

// runPipeline resolves each named stage against the registry and runs
// them as a compile chain, the last stage's interpreter/compiler
// producing the test results.
func (s *MCPServer) runPipeline(ctx context.Context, jobID string, stageNames []string, req engine.Request) (engine.Result, error) {
	stages := make([]*engine.LanguageDescriptor, 0, len(stageNames))
	for _, name := range stageNames {
		stage, err := s.registry.Resolve(name)
		if err != nil {
			return engine.Result{}, fmt.Errorf("pipeline stage %q: %w", name, err)
		}
		stages = append(stages, stage)
	}

	pd := &engine.PipelineDescriptor{Name: jobID, Stages: stages}
	return s.pipelineExecutor.Run(ctx, pd, req)
}

func toPhaseResponse(p engine.Phase) *PhaseResponse {
	return &PhaseResponse{
		Name:        p.Name,
		Stdout:      isolate.FilterBoxPrefix(string(p.Stdout)),
		Stderr:      isolate.FilterBoxPrefix(string(p.Stderr)),
		Status:      string(p.Meta.Status),
		ExitCode:    p.Meta.ExitCode,
		Time:        p.Meta.Time,
		TimeWall:    p.Meta.TimeWall,
		MemoryBytes: p.Meta.Memory,
		Message:     p.Meta.Message,
	}
}

// ServeStdio starts the server on stdio.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP.
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx.
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
