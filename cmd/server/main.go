// Package main is the entry point for the sandboxrunner MCP server.
//
// The sandboxrunner server implements a secure, configurable Model
// Context Protocol (MCP) server that compiles and executes untrusted
// source code across a closed set of languages, each run inside an
// isolate-managed sandbox. The server supports both stdio and HTTP
// transports and provides resource limits, network isolation, and
// per-box filesystem scoping via the isolator.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/sandboxrunner/config"
	"github.com/isdmx/sandboxrunner/engine"
	"github.com/isdmx/sandboxrunner/isolate"
	"github.com/isdmx/sandboxrunner/logger"
	"github.com/isdmx/sandboxrunner/mcpserver"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			newIsolator,
			newRegistry,
			newExecutor,
			newPipelineExecutor,
			mcpserver.New,
		),

		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, server *mcpserver.MCPServer, log *zap.Logger) {
			if dump, err := cfg.Dump(); err != nil {
				log.Warn("failed to render effective configuration", zap.Error(err))
			} else {
				log.Debug("effective configuration", zap.String("config_yaml", string(dump)))
			}

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						if err := startServer(cfg, server); err != nil {
							log.Error("Failed to start server", zap.Error(err))
						}
					}()
					return nil
				},
			})
		}),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func newIsolator(cfg *config.Config, log *zap.Logger) (*isolate.Isolator, error) {
	return isolate.New(log, cfg.Isolate.BinaryName, cfg.Isolate.BoxRoot,
		isolate.WithNetwork(cfg.Isolate.NetworkEnabled))
}

func newRegistry(log *zap.Logger) *engine.Registry {
	registry := engine.NewRegistry(log)
	for _, d := range engine.DiscoverBuiltins(log) {
		registered, replaced := registry.Register(d)
		log.Debug("engine: language registered",
			zap.String("language", d.Name),
			zap.Bool("registered", registered),
			zap.Bool("replaced", replaced))
	}
	return registry
}

func newExecutor(isolator *isolate.Isolator, log *zap.Logger) *engine.Executor {
	return engine.NewExecutor(isolator, log)
}

func newPipelineExecutor(isolator *isolate.Isolator, log *zap.Logger) *engine.PipelineExecutor {
	return engine.NewPipelineExecutor(isolator, log)
}

func startServer(cfg *config.Config, server *mcpserver.MCPServer) error {
	switch cfg.Server.Transport {
	case "stdio":
		return server.ServeStdio()
	case "http":
		return server.ServeHTTP()
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.Server.Transport)
	}
}
