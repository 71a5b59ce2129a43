package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/sandboxrunner/isolate"
)

// PipelineDescriptor chains several LanguageDescriptors' compile stages
// before handing off to the last stage's Interpreter/Compiler for the
// execute phase. Compiling a pipeline descriptor directly is refused
// (Compile returns an error) — Run always drives the sub-stages.
type PipelineDescriptor struct {
	Name    string
	Stages  []*LanguageDescriptor
	SourceExt string
}

// RegistryKey mirrors LanguageDescriptor's so pipelines can share a
// Registry with plain languages.
func (p *PipelineDescriptor) RegistryKey() string {
	d := &LanguageDescriptor{Name: p.Name}
	return d.RegistryKey()
}

// PipelineExecutor runs a PipelineDescriptor: each compiling stage, the
// last one included, compiles the previous stage's output into its own
// output, then the final stage's descriptor runs the ordinary Executor
// test logic to produce the test results.
type PipelineExecutor struct {
	sandbox isolate.Sandbox
	logger  *zap.Logger
}

// NewPipelineExecutor returns a PipelineExecutor driving sandbox.
func NewPipelineExecutor(sandbox isolate.Sandbox, logger *zap.Logger) *PipelineExecutor {
	return &PipelineExecutor{sandbox: sandbox, logger: logger}
}

// Run compiles req.Source through every stage in order. Result.Compile
// reflects only the LAST stage compiled — each stage's Phase overwrites
// the previous one, so a pipeline only ever surfaces its final compile
// outcome, not the intermediate ones. A failing stage stops the chain
// immediately and that stage's Phase is what's returned.
func (pe *PipelineExecutor) Run(ctx context.Context, pd *PipelineDescriptor, req Request) (Result, error) {
	if len(pd.Stages) == 0 {
		return Result{}, fmt.Errorf("engine: pipeline %q has no stages", pd.Name)
	}

	exec := NewExecutor(pe.sandbox, pe.logger)

	source := req.Source
	var lastCompile Phase
	var lastBinaries []namedBinary
	compiledAny := false

	for i, stage := range pd.Stages {
		isLast := i == len(pd.Stages)-1

		if stage.Compiler == nil {
			// An interpreted stage mid-pipeline simply passes its source
			// through unchanged to the next stage.
			if !isLast {
				continue
			}
			break
		}

		variant := variantFor(stage.ExecutorKind)
		stageReq := Request{Source: source, Compile: req.Compile}
		phase, binaries, err := exec.compile(ctx, stage, variant, sourceBaseName+stage.SourceExt, stageReq)
		if err != nil {
			return Result{}, err
		}
		lastCompile = phase
		lastBinaries = binaries
		compiledAny = true

		if len(binaries) == 0 {
			return Result{Compile: &lastCompile}, nil
		}

		if !isLast && len(binaries) > 0 {
			source = binaries[0].data
		}
	}

	var result Result
	if compiledAny {
		result.Compile = &lastCompile
	}

	finalStage := pd.Stages[len(pd.Stages)-1]
	finalReq := req
	finalReq.Source = source
	tests := req.normalizedTests()
	result.Tests = make([]Phase, 0, len(tests))

	for i, t := range tests {
		phase, err := exec.executeTest(ctx, finalStage, sourceBaseName+finalStage.SourceExt, finalReq, t, i, lastBinaries)
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

// Compile exists only to document that direct compilation of a pipeline
// descriptor is refused, matching the original's NotImplementedError: a
// pipeline's only valid entry point is Run.
func (pd *PipelineDescriptor) Compile() error {
	return fmt.Errorf("engine: pipeline %q cannot be compiled directly, only run", pd.Name)
}
