package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/sandboxrunner/isolate"
)

const (
	compiledFileName = "compiled"
	sourceBaseName   = "source"
)

// Executor runs one Request against one LanguageDescriptor through a
// sandbox, driving the compile-then-test state machine described by the
// language's descriptor.
type Executor struct {
	sandbox isolate.Sandbox
	logger  *zap.Logger
}

// NewExecutor returns an Executor driving sandbox.
func NewExecutor(sandbox isolate.Sandbox, logger *zap.Logger) *Executor {
	return &Executor{sandbox: sandbox, logger: logger}
}

// Run executes req against lang and returns the job's result tree.
//
// Phase order: compile (if the descriptor has a compiler), then one
// execute phase per normalized test. A failed
// compile short-circuits the whole job: Result.Tests stays nil. Within the
// test loop, a test marked Fatal (or req.AllFatal) whose outcome status
// isn't OK stops the remaining tests from running.
func (e *Executor) Run(ctx context.Context, lang *LanguageDescriptor, req Request) (Result, error) {
	e.logger.Debug("engine: job started", zap.String("job_id", req.JobID), zap.String("language", lang.Name))
	variant := variantFor(lang.ExecutorKind)
	sourceName := sourceBaseName + lang.SourceExt

	var compiled []namedBinary
	var result Result

	if lang.Compiler != nil {
		phase, binaries, err := e.compile(ctx, lang, variant, sourceName, req)
		if err != nil {
			return Result{}, err
		}
		result.Compile = &phase
		if len(binaries) == 0 {
			return result, nil
		}
		compiled = binaries
	}

	tests := req.normalizedTests()
	result.Tests = make([]Phase, 0, len(tests))

	for i, t := range tests {
		phase, err := e.executeTest(ctx, lang, sourceName, req, t, i, compiled)
		if err != nil {
			return result, err
		}
		result.Tests = append(result.Tests, phase)

		if phase.Meta.Status != isolate.StatusOK && (t.Fatal || req.AllFatal) {
			break
		}
	}

	return result, nil
}

func (e *Executor) compile(ctx context.Context, lang *LanguageDescriptor, variant executorVariant, sourceName string, req Request) (Phase, []namedBinary, error) {
	limits := mergeLimits(req.Compile, isolate.Limits{})

	var phase Phase
	var binaries []namedBinary

	err := e.withBox(ctx, limits, lang.AllowedDirs, func(h *isolate.Handle) error {
		boxPath := e.sandbox.Path(h)
		if err := e.sandbox.FS().WriteFile(filepath.Join(boxPath, sourceName), req.Source, 0o644); err != nil {
			return fmt.Errorf("engine: writing source for compile: %w", err)
		}

		argv := append([]string{lang.Compiler.CmdPath}, lang.Compiler.Opts...)
		argv = append(argv, sourceName)
		argv = append(argv, variant.CompileOutputArgs(compiledFileName)...)

		outcome, err := e.sandbox.Run(ctx, h, argv, lang.Compiler.Env, nil)
		if err != nil {
			return fmt.Errorf("engine: running compiler: %w", err)
		}
		phase = Phase{Stdout: outcome.Stdout, Stderr: outcome.Stderr, Meta: outcome.Meta}

		// A non-zero child exit is terminal as-is: no sentinel, no
		// artifact lookup. Only a child that exited zero but left no
		// readable artifact gets the "missing binary" sentinel appended.
		if outcome.Meta.Status != isolate.StatusOK {
			return nil
		}

		found, rerr := variant.ReadCompiled(e.sandbox.FS(), boxPath)
		if rerr != nil {
			return fmt.Errorf("engine: reading compiled output: %w", rerr)
		}
		if len(found) == 0 {
			if len(bytesTrimSpace(phase.Stderr)) > 0 {
				phase.Stderr = append(phase.Stderr, '\n', '\n')
			}
			phase.Stderr = append(phase.Stderr, []byte("Cannot find result binary.\n")...)
		} else {
			binaries = found
		}
		return nil
	})

	return phase, binaries, err
}

func bytesTrimSpace(b []byte) []byte { return []byte(strings.TrimSpace(string(b))) }

func (e *Executor) executeTest(ctx context.Context, lang *LanguageDescriptor, sourceName string, req Request, t Test, index int, compiled []namedBinary) (Phase, error) {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("test%03d", index)
	}

	limits := mergeLimits(req.Execute, t.Execute)

	var phase Phase
	err := e.withBox(ctx, limits, lang.AllowedDirs, func(h *isolate.Handle) error {
		boxPath := e.sandbox.Path(h)

		var argv []string
		switch {
		case lang.Compiler != nil:
			for _, bin := range compiled {
				fname := compiledFileName
				if bin.name != "" {
					fname = bin.name
				}
				if err := e.sandbox.FS().WriteFile(filepath.Join(boxPath, fname), bin.data, 0o755); err != nil {
					return fmt.Errorf("engine: staging compiled binary: %w", err)
				}
			}
			if lang.Interpreter != nil {
				argv = append([]string{lang.Interpreter.CmdPath}, lang.Interpreter.Opts...)
				argv = append(argv, filepath.Join("/box", compiledFileName))
			} else {
				argv = []string{filepath.Join("/box", compiledFileName)}
			}
		default:
			if err := e.sandbox.FS().WriteFile(filepath.Join(boxPath, sourceName), req.Source, 0o644); err != nil {
				return fmt.Errorf("engine: writing source for execute: %w", err)
			}
			argv = append([]string{lang.Interpreter.CmdPath}, lang.Interpreter.Opts...)
			argv = append(argv, sourceName)
		}

		var env map[string]string
		if lang.Interpreter != nil {
			env = lang.Interpreter.Env
		} else if lang.Compiler != nil {
			env = lang.Compiler.Env
		}

		outcome, err := e.sandbox.Run(ctx, h, argv, env, t.Stdin)
		if err != nil {
			return fmt.Errorf("engine: running test %s: %w", name, err)
		}
		phase = Phase{Name: name, Stdout: outcome.Stdout, Stderr: outcome.Stderr, Meta: outcome.Meta}
		return nil
	})

	return phase, err
}

// withBox acquires a box scoped to fn's lifetime and guarantees release,
// logging (not returning) a failed release.
func (e *Executor) withBox(ctx context.Context, limits isolate.Limits, allowedDirs []string, fn func(h *isolate.Handle) error) error {
	h, err := e.sandbox.Acquire(ctx, limits, allowedDirs)
	if err != nil {
		return fmt.Errorf("engine: acquiring box: %w", err)
	}
	defer func() {
		if relErr := e.sandbox.Release(ctx, h); relErr != nil {
			e.logger.Warn("engine: releasing box failed", zap.Error(relErr))
		}
	}()
	return fn(h)
}
